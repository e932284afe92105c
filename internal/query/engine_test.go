package query

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/filter"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

type fakeStore struct {
	conversations []models.ConversationRecord
}

func (f *fakeStore) GetConversationsByDateRange(ctx context.Context, start, end time.Time) ([]models.ConversationRecord, error) {
	return f.conversations, nil
}

func (f *fakeStore) GetMessagesByDateRange(ctx context.Context, start, end time.Time) ([]models.MessageRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetMessagesForConversation(ctx context.Context, conversationID string) ([]models.MessageRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetQuestionsByDateRange(ctx context.Context, start, end time.Time) ([]models.QuestionRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetQuestionsByCategory(ctx context.Context, category string, limit int) ([]models.QuestionRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetQuestionsByLanguage(ctx context.Context, language string, limit int) ([]models.QuestionRecord, error) {
	return nil, nil
}

func floatPtr(v float64) *float64 { return &v }

func newTestEngine(records []models.ConversationRecord) *Engine {
	return NewEngine(filter.NewEngine(&fakeStore{conversations: records}), nil, 0)
}

func sampleRecords() []models.ConversationRecord {
	at := time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC)
	return []models.ConversationRecord{
		{ID: "1", StartedAt: at, Language: "en", Outcome: models.OutcomeResolved, MessageCount: 5, AvgConfidence: floatPtr(0.9)},
		{ID: "2", StartedAt: at.Add(time.Hour), Language: "en", Outcome: models.OutcomeEscalated, MessageCount: 3, AvgConfidence: floatPtr(0.5)},
		{ID: "3", StartedAt: at.Add(2 * time.Hour), Language: "es", Outcome: models.OutcomeResolved, MessageCount: 4, AvgConfidence: floatPtr(0.7)},
		{ID: "4", StartedAt: at.Add(3 * time.Hour), Language: "es", Outcome: models.OutcomeAbandoned, MessageCount: 2},
	}
}

func TestExecuteCountByLanguage(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Dimensions: []string{"language"},
		Metrics:    []string{MetricCount},
	})
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	counts := make(map[string]float64)
	var sum float64
	for _, row := range result.Rows {
		counts[row.Dimensions["language"]] = row.Metrics[MetricCount]
		sum += row.Metrics[MetricCount]
	}

	assert.Equal(t, 2.0, counts["en"])
	assert.Equal(t, 2.0, counts["es"])
	// Count rows always sum to the number of records scanned.
	assert.Equal(t, float64(result.Metadata.TotalRecordsScanned), sum)
	assert.Equal(t, "bypass", result.Metadata.CacheStatus)
}

func TestExecuteAverageConfidenceIgnoresMissing(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Metrics: []string{MetricAverageConfidence},
	})
	require.NoError(t, err)

	// 0.9, 0.5, 0.7 average to 0.7; the record without confidence is ignored.
	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 0.7, result.Rows[0].Metrics[MetricAverageConfidence], 1e-9)
}

func TestExecuteTotalMessages(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Dimensions: []string{"outcome"},
		Metrics:    []string{MetricTotalMessages},
	})
	require.NoError(t, err)

	totals := make(map[string]float64)
	for _, row := range result.Rows {
		totals[row.Dimensions["outcome"]] = row.Metrics[MetricTotalMessages]
	}
	assert.Equal(t, 9.0, totals[models.OutcomeResolved])
	assert.Equal(t, 3.0, totals[models.OutcomeEscalated])
	assert.Equal(t, 2.0, totals[models.OutcomeAbandoned])
}

func TestExecuteUnknownMetricYieldsZero(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Metrics: []string{"medianLatency"},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Zero(t, result.Rows[0].Metrics["medianLatency"])
}

func TestExecuteUnknownDimensionValue(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Dimensions: []string{"zipCode"},
	})
	require.NoError(t, err)

	// No record carries a zip code, so all collapse into the sentinel group.
	require.Len(t, result.Rows, 1)
	assert.Equal(t, unknownDimension, result.Rows[0].Dimensions["zipCode"])
	assert.Equal(t, 4.0, result.Rows[0].Metrics[MetricCount])
}

func TestExecuteSortAndLimit(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Dimensions: []string{"outcome"},
		Metrics:    []string{MetricCount},
		SortBy:     MetricCount,
		SortOrder:  "desc",
		Limit:      2,
	})
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.GreaterOrEqual(t, result.Rows[0].Metrics[MetricCount], result.Rows[1].Metrics[MetricCount])
}

func TestExecuteValidation(t *testing.T) {
	engine := newTestEngine(nil)
	ctx := context.Background()

	_, err := engine.Execute(ctx, Query{TimeGranularity: "fortnight"})
	assert.Error(t, err)

	_, err = engine.Execute(ctx, Query{SortOrder: "sideways"})
	assert.Error(t, err)

	_, err = engine.Execute(ctx, Query{Limit: maxRowLimit + 1})
	assert.Error(t, err)
}

func TestTruncateToGranularity(t *testing.T) {
	// Wednesday July 15 2026, 14:45:30 UTC.
	at := time.Date(2026, 7, 15, 14, 45, 30, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC), TruncateToGranularity(at, GranularityHour))
	assert.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), TruncateToGranularity(at, GranularityDay))
	// Weeks start on Monday.
	assert.Equal(t, time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC), TruncateToGranularity(at, GranularityWeek))
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), TruncateToGranularity(at, GranularityMonth))

	// A Sunday truncates back to the previous Monday.
	sunday := time.Date(2026, 7, 19, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC), TruncateToGranularity(sunday, GranularityWeek))
}

func TestExecuteTimeBuckets(t *testing.T) {
	engine := newTestEngine(sampleRecords())

	result, err := engine.Execute(context.Background(), Query{
		Dimensions:      []string{"language"},
		TimeGranularity: GranularityDay,
	})
	require.NoError(t, err)

	for _, row := range result.Rows {
		require.NotNil(t, row.TimeBucket)
		assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), *row.TimeBucket)
	}
}
