package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/cache/redis"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/filter"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/utils"
)

// Metrics computable per group. Unrecognized names yield 0 instead of failing.
const (
	MetricCount             = "count"
	MetricAverageConfidence = "averageConfidence"
	MetricTotalMessages     = "totalMessages"
)

// Time bucket granularities.
const (
	GranularityHour  = "hour"
	GranularityDay   = "day"
	GranularityWeek  = "week"
	GranularityMonth = "month"
)

const unknownDimension = "unknown"

const maxRowLimit = 1000

type Query struct {
	ID              string         `json:"id,omitempty"`
	Filters         filter.Options `json:"filters"`
	Dimensions      []string       `json:"dimensions,omitempty"`
	Metrics         []string       `json:"metrics,omitempty"`
	TimeGranularity string         `json:"timeGranularity,omitempty"`
	SortBy          string         `json:"sortBy,omitempty"`
	SortOrder       string         `json:"sortOrder,omitempty"`
	Limit           int            `json:"limit,omitempty"`
}

// Row carries the original typed dimension values; the joined grouping key is
// internal only.
type Row struct {
	Dimensions map[string]string  `json:"dimensions"`
	Metrics    map[string]float64 `json:"metrics"`
	TimeBucket *time.Time         `json:"timeBucket,omitempty"`
}

type Metadata struct {
	TotalRecordsScanned int       `json:"totalRecordsScanned"`
	CacheStatus         string    `json:"cacheStatus"`
	DataFreshness       time.Time `json:"dataFreshness"`
}

type Result struct {
	QueryID    string    `json:"queryId"`
	ExecutedAt time.Time `json:"executedAt"`
	DurationMS int64     `json:"durationMs"`
	RowCount   int       `json:"rowCount"`
	Rows       []Row     `json:"rows"`
	Metadata   Metadata  `json:"metadata"`
}

type Engine struct {
	filters  *filter.Engine
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewEngine builds the aggregation engine. cache may be nil, in which case
// every execution reports cacheStatus "bypass".
func NewEngine(filters *filter.Engine, cache *redis.Client, cacheTTL time.Duration) *Engine {
	return &Engine{
		filters:  filters,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Execute groups the filtered conversations by the requested dimensions and
// computes the requested metrics per group.
func (e *Engine) Execute(ctx context.Context, q Query) (*Result, error) {
	if err := validate(q); err != nil {
		return nil, err
	}

	queryID := q.ID
	if queryID == "" {
		queryID = queryFingerprint(q)
	}

	startTime := time.Now()

	if e.cache != nil {
		var cached Result
		hit, err := e.cache.GetResult(ctx, queryFingerprint(q), &cached)
		if err != nil {
			logger.Warn("Query cache read failed", zap.Error(err))
		} else if hit {
			cached.QueryID = queryID
			cached.Metadata.CacheStatus = "hit"
			return &cached, nil
		}
	}

	records, err := e.filters.Collect(ctx, q.Filters)
	if err != nil {
		return nil, err
	}

	rows := aggregate(records, q)
	sortRows(rows, q.SortBy, q.SortOrder)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	cacheStatus := "bypass"
	if e.cache != nil {
		cacheStatus = "miss"
	}

	result := &Result{
		QueryID:    queryID,
		ExecutedAt: startTime,
		DurationMS: time.Since(startTime).Milliseconds(),
		RowCount:   len(rows),
		Rows:       rows,
		Metadata: Metadata{
			TotalRecordsScanned: len(records),
			CacheStatus:         cacheStatus,
			DataFreshness:       time.Now(),
		},
	}

	if e.cache != nil {
		if err := e.cache.SetResult(ctx, queryFingerprint(q), result, e.cacheTTL); err != nil {
			logger.Warn("Query cache write failed", zap.Error(err))
		}
	}

	logger.Info("Aggregation query executed",
		zap.String("query_id", queryID),
		zap.Int("rows", len(rows)),
		zap.Int("records_scanned", len(records)),
	)

	return result, nil
}

func validate(q Query) error {
	if err := filter.Validate(q.Filters); err != nil {
		return err
	}
	switch q.TimeGranularity {
	case "", GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
	default:
		return fmt.Errorf("unsupported time granularity %q", q.TimeGranularity)
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return fmt.Errorf("unsupported sort order %q", q.SortOrder)
	}
	if q.Limit < 0 || q.Limit > maxRowLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", maxRowLimit, q.Limit)
	}
	return nil
}

type group struct {
	key     string
	values  []string
	records []models.ConversationRecord
}

func aggregate(records []models.ConversationRecord, q Query) []Row {
	metrics := q.Metrics
	if len(metrics) == 0 {
		metrics = []string{MetricCount}
	}

	// Group in input order so tie-breaking stays deterministic.
	index := make(map[string]*group)
	var groups []*group
	for _, r := range records {
		values := dimensionValues(r, q.Dimensions)
		key := strings.Join(values, "\x1f")
		g, ok := index[key]
		if !ok {
			g = &group{key: key, values: values}
			index[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, r)
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		dims := make(map[string]string, len(q.Dimensions))
		for i, d := range q.Dimensions {
			dims[d] = g.values[i]
		}

		row := Row{
			Dimensions: dims,
			Metrics:    make(map[string]float64, len(metrics)),
		}
		for _, m := range metrics {
			row.Metrics[m] = computeMetric(m, g.records)
		}
		if q.TimeGranularity != "" {
			bucket := TruncateToGranularity(g.records[0].StartedAt, q.TimeGranularity)
			row.TimeBucket = &bucket
		}
		rows = append(rows, row)
	}

	return rows
}

func dimensionValues(r models.ConversationRecord, dimensions []string) []string {
	values := make([]string, len(dimensions))
	for i, d := range dimensions {
		values[i] = dimensionValue(r, d)
	}
	return values
}

func dimensionValue(r models.ConversationRecord, dimension string) string {
	switch dimension {
	case "language":
		if r.Language != "" {
			return r.Language
		}
	case "outcome":
		if r.Outcome != "" {
			return r.Outcome
		}
	case "escalated":
		return strconv.FormatBool(r.Escalated())
	case "zipCode":
		if r.ZipCode != nil && *r.ZipCode != "" {
			return *r.ZipCode
		}
	case "escalationReason":
		if r.EscalationReason != nil && *r.EscalationReason != "" {
			return *r.EscalationReason
		}
	}
	return unknownDimension
}

func computeMetric(name string, records []models.ConversationRecord) float64 {
	switch name {
	case MetricCount:
		return float64(len(records))
	case MetricAverageConfidence:
		var sum float64
		var n int
		for _, r := range records {
			if r.AvgConfidence != nil {
				sum += *r.AvgConfidence
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	case MetricTotalMessages:
		var total float64
		for _, r := range records {
			total += float64(r.MessageCount)
		}
		return total
	default:
		return 0
	}
}

// TruncateToGranularity floors t to the requested bucket: hour floor, UTC
// midnight, Monday start-of-week, or day 1 of the month.
func TruncateToGranularity(t time.Time, granularity string) time.Time {
	t = t.UTC()
	switch granularity {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// sortRows orders by a metric when SortBy names one, by a dimension value
// otherwise. Ties keep group-discovery order.
func sortRows(rows []Row, sortBy, sortOrder string) {
	if sortBy == "" {
		return
	}
	desc := sortOrder != "asc"

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if av, ok := a.Metrics[sortBy]; ok {
			bv := b.Metrics[sortBy]
			if desc {
				return av > bv
			}
			return av < bv
		}
		av, bv := a.Dimensions[sortBy], b.Dimensions[sortBy]
		if desc {
			return av > bv
		}
		return av < bv
	})
}

func queryFingerprint(q Query) string {
	serialized, _ := json.Marshal(q)
	return utils.Fingerprint(string(serialized))
}
