package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "clara.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func floatPtr(v float64) *float64 { return &v }

func TestConversationRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	conv := &models.ConversationRecord{
		ID:            "conv-1",
		StartedAt:     at,
		EndedAt:       at.Add(10 * time.Minute),
		Language:      "en",
		MessageCount:  2,
		AvgConfidence: floatPtr(0.8),
		Outcome:       models.OutcomeResolved,
	}
	require.NoError(t, client.InsertConversation(ctx, conv))

	records, err := client.GetConversationsByDateRange(ctx, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.StartedAt, got.StartedAt)
	assert.Equal(t, conv.Outcome, got.Outcome)
	require.NotNil(t, got.AvgConfidence)
	assert.InDelta(t, 0.8, *got.AvgConfidence, 1e-9)

	// The range end is exclusive.
	none, err := client.GetConversationsByDateRange(ctx, at.Add(-2*time.Hour), at)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMessageReads(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, client.InsertConversation(ctx, &models.ConversationRecord{
		ID: "conv-1", StartedAt: at, EndedAt: at, Language: "en", Outcome: models.OutcomeResolved,
	}))

	for i, content := range []string{"How do I store insulin?", "Keep it refrigerated."} {
		role := models.RoleUser
		if i == 1 {
			role = models.RoleBot
		}
		require.NoError(t, client.InsertMessage(ctx, &models.MessageRecord{
			ConversationID: "conv-1",
			Position:       i,
			Timestamp:      at.Add(time.Duration(i) * time.Second),
			Role:           role,
			Content:        content,
			Language:       "en",
		}))
	}

	byConv, err := client.GetMessagesForConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, byConv, 2)
	assert.Equal(t, 0, byConv[0].Position)
	assert.Equal(t, models.RoleBot, byConv[1].Role)

	byRange, err := client.GetMessagesByDateRange(ctx, at, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, byRange, 2)
}

func TestRecordQuestionKeepsCounterInvariant(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	// Same question in different whitespace/case folds into one fingerprint.
	require.NoError(t, client.RecordQuestion(ctx, "How do I store insulin", "medication", "en", true, false, 0.9, at))
	require.NoError(t, client.RecordQuestion(ctx, "how  do i store INSULIN", "medication", "en", false, true, 0.3, at.Add(time.Hour)))

	questions, err := client.GetQuestionsByCategory(ctx, "medication", 10)
	require.NoError(t, err)
	require.Len(t, questions, 1)

	q := questions[0]
	assert.Equal(t, 2, q.Count)
	assert.Equal(t, q.Count, q.AnsweredCount+q.UnansweredCount)
	assert.Equal(t, 1, q.EscalationCount)
	assert.InDelta(t, 0.6, q.AvgConfidence, 1e-9)
	assert.Equal(t, at.Add(time.Hour), q.LastAskedAt)

	byLanguage, err := client.GetQuestionsByLanguage(ctx, "en", 10)
	require.NoError(t, err)
	assert.Len(t, byLanguage, 1)

	byRange, err := client.GetQuestionsByDateRange(ctx, at, at.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, byRange, 1)
}

func TestExportStoreAndFetch(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	url, err := client.StoreExport(ctx, "exp-1", "export_exp-1.json", []byte(`{"data":[]}`), "json")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/exports/exp-1/download", url)

	filename, data, format, err := client.GetExport(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "export_exp-1.json", filename)
	assert.Equal(t, "json", format)
	assert.JSONEq(t, `{"data":[]}`, string(data))

	_, _, _, err = client.GetExport(ctx, "missing")
	assert.Error(t, err)
}
