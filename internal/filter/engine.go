package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/utils"
)

// Sort fields accepted by Options.SortBy.
const (
	SortByTimestamp    = "timestamp"
	SortByConfidence   = "confidence"
	SortByMessageCount = "message_count"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// Options is the reusable filter parameter set. Absent predicates impose no
// constraint; supplied predicates combine with logical AND.
type Options struct {
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	Language         string     `json:"language,omitempty"`
	Outcome          string     `json:"outcome,omitempty"`
	MinConfidence    *float64   `json:"minConfidence,omitempty"`
	MinMessageCount  *int       `json:"minMessageCount,omitempty"`
	MaxMessageCount  *int       `json:"maxMessageCount,omitempty"`
	UserName         string     `json:"userName,omitempty"`
	ZipCode          string     `json:"zipCode,omitempty"`
	Escalated        *bool      `json:"escalated,omitempty"`
	EscalationReason string     `json:"escalationReason,omitempty"`
	SortBy           string     `json:"sortBy,omitempty"`
	SortOrder        string     `json:"sortOrder,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	Offset           int        `json:"offset,omitempty"`
}

// State describes which filter produced a result set. The ID is derived from
// the option content plus creation time, so identical options filtered at
// different instants get distinct ids with identical AppliedFilters.
type State struct {
	ID             string    `json:"id"`
	AppliedFilters Options   `json:"appliedFilters"`
	CreatedAt      time.Time `json:"createdAt"`
	ResultCount    int       `json:"resultCount"`
	DurationMS     int64     `json:"durationMs"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type Result struct {
	Data       []models.ConversationRecord `json:"data"`
	State      State                       `json:"filterState"`
	Pagination Pagination                  `json:"pagination"`
}

type Engine struct {
	store storage.RecordReader
}

func NewEngine(store storage.RecordReader) *Engine {
	return &Engine{store: store}
}

// Filter applies opts to the current conversation records, sorts, and
// paginates. Validation failures are returned before any data access.
func (e *Engine) Filter(ctx context.Context, opts Options) (*Result, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	startTime := time.Now()

	matched, err := e.Collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	total := len(matched)
	page := paginate(matched, opts.Offset, limit)

	state := State{
		ID:             stateID(opts, startTime),
		AppliedFilters: opts,
		CreatedAt:      startTime,
		ResultCount:    total,
		DurationMS:     time.Since(startTime).Milliseconds(),
	}

	logger.Debug("Filter applied",
		zap.String("filter_id", state.ID),
		zap.Int("total", total),
		zap.Int("returned", len(page)),
	)

	return &Result{
		Data:  page,
		State: state,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  opts.Offset,
			HasMore: opts.Offset+limit < total,
		},
	}, nil
}

// Collect returns every matching record in sorted order, without pagination.
// Search, aggregation, and export scope their candidate sets through this.
func (e *Engine) Collect(ctx context.Context, opts Options) ([]models.ConversationRecord, error) {
	start, end := dateRange(opts)

	records, err := e.store.GetConversationsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	matched := Apply(records, opts)
	sortRecords(matched, opts.SortBy, opts.SortOrder)
	return matched, nil
}

// Apply runs the AND-composed predicates over an in-memory collection.
func Apply(records []models.ConversationRecord, opts Options) []models.ConversationRecord {
	matched := make([]models.ConversationRecord, 0, len(records))
	for _, r := range records {
		if matches(r, opts) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Validate rejects malformed options before any data access.
func Validate(opts Options) error {
	if opts.Limit < 0 || opts.Limit > maxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", maxLimit, opts.Limit)
	}
	if opts.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", opts.Offset)
	}
	if opts.SortBy != "" && opts.SortBy != SortByTimestamp && opts.SortBy != SortByConfidence && opts.SortBy != SortByMessageCount {
		return fmt.Errorf("unsupported sort field %q", opts.SortBy)
	}
	if opts.SortOrder != "" && opts.SortOrder != "asc" && opts.SortOrder != "desc" {
		return fmt.Errorf("unsupported sort order %q", opts.SortOrder)
	}
	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(*opts.StartDate) {
		return fmt.Errorf("endDate precedes startDate")
	}
	return nil
}

func matches(r models.ConversationRecord, opts Options) bool {
	if opts.Language != "" && r.Language != opts.Language {
		return false
	}
	if opts.Outcome != "" && r.Outcome != opts.Outcome {
		return false
	}
	if opts.MinConfidence != nil {
		if r.AvgConfidence == nil || *r.AvgConfidence < *opts.MinConfidence {
			return false
		}
	}
	if opts.MinMessageCount != nil && r.MessageCount < *opts.MinMessageCount {
		return false
	}
	if opts.MaxMessageCount != nil && r.MessageCount > *opts.MaxMessageCount {
		return false
	}
	if opts.UserName != "" {
		if r.UserName == nil || !strings.EqualFold(*r.UserName, opts.UserName) {
			return false
		}
	}
	if opts.ZipCode != "" {
		if r.ZipCode == nil || *r.ZipCode != opts.ZipCode {
			return false
		}
	}
	if opts.Escalated != nil && r.Escalated() != *opts.Escalated {
		return false
	}
	if opts.EscalationReason != "" {
		if r.EscalationReason == nil ||
			!strings.Contains(strings.ToLower(*r.EscalationReason), strings.ToLower(opts.EscalationReason)) {
			return false
		}
	}
	if opts.StartDate != nil && r.StartedAt.Before(*opts.StartDate) {
		return false
	}
	if opts.EndDate != nil && !r.StartedAt.Before(*opts.EndDate) {
		return false
	}
	return true
}

// sortRecords keeps input order on ties (stable sort is part of the contract).
func sortRecords(records []models.ConversationRecord, sortBy, sortOrder string) {
	if sortBy == "" {
		sortBy = SortByTimestamp
	}
	desc := sortOrder != "asc"

	less := func(a, b models.ConversationRecord) bool {
		switch sortBy {
		case SortByConfidence:
			return confidenceOf(a) < confidenceOf(b)
		case SortByMessageCount:
			return a.MessageCount < b.MessageCount
		default:
			return a.StartedAt.Before(b.StartedAt)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

func confidenceOf(r models.ConversationRecord) float64 {
	if r.AvgConfidence == nil {
		return 0
	}
	return *r.AvgConfidence
}

func paginate(records []models.ConversationRecord, offset, limit int) []models.ConversationRecord {
	if offset >= len(records) {
		return []models.ConversationRecord{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

func dateRange(opts Options) (time.Time, time.Time) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC().Add(time.Hour)
	if opts.StartDate != nil {
		start = *opts.StartDate
	}
	if opts.EndDate != nil {
		end = *opts.EndDate
	}
	return start, end
}

func stateID(opts Options, at time.Time) string {
	serialized, _ := json.Marshal(opts)
	return utils.Fingerprint(string(serialized) + strconv.FormatInt(at.UnixNano(), 10))
}
