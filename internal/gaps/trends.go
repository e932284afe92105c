package gaps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/query"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

// Trend granularities.
const (
	TrendDaily   = "daily"
	TrendWeekly  = "weekly"
	TrendMonthly = "monthly"
)

const (
	forecastPeriods      = 3
	seasonalityMinPoints = 12
	seasonalityMinMonths = 6
	peakFactor           = 1.5
)

type CategoryTrend struct {
	Category      string       `json:"category"`
	Points        []TrendPoint `json:"points"`
	PercentChange float64      `json:"percentChange"`
	Volatility    float64      `json:"volatility"`
	Forecast      []float64    `json:"forecast,omitempty"`
	Seasonal      bool         `json:"seasonal"`
}

type TrendReport struct {
	Granularity    string          `json:"granularity"`
	Categories     []CategoryTrend `json:"categories"`
	OverallChange  float64         `json:"overallChangePercent"`
	Direction      string          `json:"direction"`
	PeakPeriods    []time.Time     `json:"peakPeriods,omitempty"`
	TotalQuestions int             `json:"totalQuestions"`
}

// Trends builds per-category time series for the top categories by frequency
// and computes change, volatility, a naive linear forecast, and seasonality.
func (a *Analyzer) Trends(ctx context.Context, start, end time.Time, granularity string) (*TrendReport, error) {
	bucketGranularity, err := bucketGranularity(granularity)
	if err != nil {
		return nil, err
	}

	unanswered, err := a.IdentifyUnanswered(ctx, start, end)
	if err != nil {
		return nil, err
	}

	// category -> bucket -> count, and per-category totals for the top-N cut.
	counts := make(map[string]map[time.Time]int)
	totals := make(map[string]int)
	for _, q := range unanswered {
		bucket := query.TruncateToGranularity(q.AskedAt, bucketGranularity)
		if counts[q.Category] == nil {
			counts[q.Category] = make(map[time.Time]int)
		}
		counts[q.Category][bucket]++
		totals[q.Category]++
	}

	categories := make([]string, 0, len(totals))
	for category := range totals {
		categories = append(categories, category)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		if totals[categories[i]] != totals[categories[j]] {
			return totals[categories[i]] > totals[categories[j]]
		}
		return categories[i] < categories[j]
	})
	if len(categories) > a.cfg.TopCategories {
		categories = categories[:a.cfg.TopCategories]
	}

	buckets := bucketSequence(start, end, bucketGranularity)

	report := &TrendReport{
		Granularity:    granularity,
		TotalQuestions: len(unanswered),
	}

	seriesTotals := make([]int, len(buckets))
	for _, category := range categories {
		points := make([]TrendPoint, len(buckets))
		for i, b := range buckets {
			points[i] = TrendPoint{Period: b, Count: counts[category][b]}
			seriesTotals[i] += counts[category][b]
		}

		trend := CategoryTrend{
			Category:      category,
			Points:        points,
			PercentChange: percentChange(points),
		}
		// Fewer than 2 points: skip volatility and forecast rather than error.
		if len(points) >= 2 {
			trend.Volatility = volatility(points)
			trend.Forecast = forecast(points, forecastPeriods)
		}
		trend.Seasonal = seasonal(points)

		report.Categories = append(report.Categories, trend)
	}

	report.OverallChange = halvesChange(seriesTotals)
	report.Direction = direction(report.OverallChange)
	report.PeakPeriods = peakPeriods(buckets, seriesTotals)

	logger.Info("Trend analysis completed",
		zap.String("granularity", granularity),
		zap.Int("categories", len(report.Categories)),
		zap.Int("questions", len(unanswered)),
	)

	return report, nil
}

func bucketGranularity(granularity string) (string, error) {
	switch granularity {
	case TrendDaily, "":
		return query.GranularityDay, nil
	case TrendWeekly:
		return query.GranularityWeek, nil
	case TrendMonthly:
		return query.GranularityMonth, nil
	default:
		return "", fmt.Errorf("unsupported trend granularity %q", granularity)
	}
}

func bucketSequence(start, end time.Time, granularity string) []time.Time {
	var buckets []time.Time
	current := query.TruncateToGranularity(start, granularity)
	for current.Before(end) {
		buckets = append(buckets, current)
		switch granularity {
		case query.GranularityWeek:
			current = current.AddDate(0, 0, 7)
		case query.GranularityMonth:
			current = current.AddDate(0, 1, 0)
		default:
			current = current.AddDate(0, 0, 1)
		}
	}
	return buckets
}

// percentChange is period-over-period: the last bucket against the one before it.
func percentChange(points []TrendPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	prev := float64(points[len(points)-2].Count)
	last := float64(points[len(points)-1].Count)
	if prev == 0 {
		if last == 0 {
			return 0
		}
		return 100
	}
	return (last - prev) / prev * 100
}

// volatility is stddev/mean of the counts; 0 when the mean is 0.
func volatility(points []TrendPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += float64(p.Count)
	}
	mean := sum / float64(len(points))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, p := range points {
		d := float64(p.Count) - mean
		variance += d * d
	}
	variance /= float64(len(points))

	return math.Sqrt(variance) / mean
}

// forecast fits y = a + b*x by closed-form least squares over the index
// sequence and projects the next n periods, floored at zero.
func forecast(points []TrendPoint, n int) []float64 {
	count := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		y := float64(p.Count)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := count*sumXX - sumX*sumX
	var slope float64
	if denom != 0 {
		slope = (count*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / count

	projected := make([]float64, n)
	for i := 0; i < n; i++ {
		x := count + float64(i)
		value := intercept + slope*x
		if value < 0 {
			value = 0
		}
		projected[i] = value
	}
	return projected
}

// seasonal flags a monthly pattern: at least 12 data points spanning at least
// 6 distinct calendar months, with one month's mean well above the overall mean.
func seasonal(points []TrendPoint) bool {
	if len(points) < seasonalityMinPoints {
		return false
	}

	monthSums := make(map[time.Month]float64)
	monthCounts := make(map[time.Month]int)
	var total float64
	for _, p := range points {
		monthSums[p.Period.Month()] += float64(p.Count)
		monthCounts[p.Period.Month()]++
		total += float64(p.Count)
	}
	if len(monthCounts) < seasonalityMinMonths {
		return false
	}

	overallMean := total / float64(len(points))
	if overallMean == 0 {
		return false
	}
	for month, sum := range monthSums {
		if sum/float64(monthCounts[month]) >= peakFactor*overallMean {
			return true
		}
	}
	return false
}

// halvesChange is the percent change between the first and second halves of
// the full series.
func halvesChange(totals []int) float64 {
	if len(totals) < 2 {
		return 0
	}
	half := len(totals) / 2

	var first, second float64
	for _, v := range totals[:half] {
		first += float64(v)
	}
	for _, v := range totals[half:] {
		second += float64(v)
	}

	if first == 0 {
		if second == 0 {
			return 0
		}
		return 100
	}
	return (second - first) / first * 100
}

func direction(changePercent float64) string {
	switch {
	case changePercent > 10:
		return "increasing"
	case changePercent < -10:
		return "decreasing"
	default:
		return "stable"
	}
}

// peakPeriods returns buckets whose total exceeds 1.5x the mean total.
func peakPeriods(buckets []time.Time, totals []int) []time.Time {
	if len(totals) == 0 {
		return nil
	}

	var sum float64
	for _, v := range totals {
		sum += float64(v)
	}
	mean := sum / float64(len(totals))
	if mean == 0 {
		return nil
	}

	var peaks []time.Time
	for i, v := range totals {
		if float64(v) > peakFactor*mean {
			peaks = append(peaks, buckets[i])
		}
	}
	return peaks
}
