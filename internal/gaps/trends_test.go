package gaps

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
)

func points(counts ...int) []TrendPoint {
	pts := make([]TrendPoint, len(counts))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range counts {
		pts[i] = TrendPoint{Period: base.AddDate(0, 0, i), Count: c}
	}
	return pts
}

func TestPercentChange(t *testing.T) {
	assert.InDelta(t, 100, percentChange(points(1, 2)), 1e-9)
	assert.InDelta(t, -50, percentChange(points(4, 2)), 1e-9)
	assert.InDelta(t, 0, percentChange(points(0, 0)), 1e-9)
	assert.InDelta(t, 100, percentChange(points(0, 7)), 1e-9)
	assert.Zero(t, percentChange(points(5)))
}

func TestVolatility(t *testing.T) {
	// Constant series has zero volatility.
	assert.Zero(t, volatility(points(3, 3, 3, 3)))
	// All-zero series reports zero instead of dividing by a zero mean.
	assert.Zero(t, volatility(points(0, 0, 0)))
	assert.Greater(t, volatility(points(0, 10, 0, 10)), 0.0)
}

func TestForecastLinearSeries(t *testing.T) {
	// Perfectly linear input projects the continuation of the line.
	projected := forecast(points(1, 2, 3, 4), 3)
	require.Len(t, projected, 3)
	assert.InDelta(t, 5, projected[0], 1e-9)
	assert.InDelta(t, 6, projected[1], 1e-9)
	assert.InDelta(t, 7, projected[2], 1e-9)
}

func TestForecastFloorsAtZero(t *testing.T) {
	projected := forecast(points(6, 4, 2, 0), 3)
	for _, v := range projected {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestHalvesChange(t *testing.T) {
	assert.InDelta(t, 100, halvesChange([]int{1, 1, 2, 2}), 1e-9)
	assert.InDelta(t, -50, halvesChange([]int{2, 2, 1, 1}), 1e-9)
	assert.Zero(t, halvesChange([]int{5}))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, "increasing", direction(25))
	assert.Equal(t, "decreasing", direction(-25))
	assert.Equal(t, "stable", direction(5))
	assert.Equal(t, "stable", direction(-5))
}

func TestSeasonalRequiresEnoughHistory(t *testing.T) {
	assert.False(t, seasonal(points(1, 2, 3)))

	// 14 monthly points with one month spiking well above the mean.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var pts []TrendPoint
	for i := 0; i < 14; i++ {
		count := 2
		if base.AddDate(0, i, 0).Month() == time.December {
			count = 20
		}
		pts = append(pts, TrendPoint{Period: base.AddDate(0, i, 0), Count: count})
	}
	assert.True(t, seasonal(pts))
}

func TestBucketSequenceFillsGaps(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)

	buckets := bucketSequence(start, end, "day")
	require.Len(t, buckets, 5)
	for i := 1; i < len(buckets); i++ {
		assert.Equal(t, buckets[i-1].AddDate(0, 0, 1), buckets[i])
	}
}

func TestTrendsReport(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)

	// Medication questions ramp up day by day; one diet question on day 1.
	var msgs []models.MessageRecord
	id := 0
	for dayIdx := 0; dayIdx < 4; dayIdx++ {
		for n := 0; n <= dayIdx; n++ {
			msgs = append(msgs, exchange(fmt.Sprintf("m-%d", id), 0,
				start.AddDate(0, 0, dayIdx).Add(10*time.Hour), "How much insulin?", "", nil)...)
			id++
		}
	}
	msgs = append(msgs, exchange("d-0", 0, start.Add(10*time.Hour), "What carbs can I eat?", "", nil)...)

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{})
	report, err := analyzer.Trends(context.Background(), start, end, TrendDaily)
	require.NoError(t, err)

	assert.Equal(t, TrendDaily, report.Granularity)
	assert.Equal(t, 11, report.TotalQuestions)
	require.NotEmpty(t, report.Categories)

	// Highest-frequency category comes first.
	med := report.Categories[0]
	assert.Equal(t, "medication", med.Category)
	require.Len(t, med.Points, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{med.Points[0].Count, med.Points[1].Count, med.Points[2].Count, med.Points[3].Count})
	assert.NotEmpty(t, med.Forecast)
	assert.Equal(t, "increasing", report.Direction)
}

func TestTrendsRejectsUnknownGranularity(t *testing.T) {
	analyzer := NewAnalyzer(&fakeStore{}, Config{})
	_, err := analyzer.Trends(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 1), "fortnightly")
	assert.Error(t, err)
}
