package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/filter"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/relevance"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/circuitbreaker"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

// Record kinds accepted in Request.SearchIn.
const (
	KindConversations = "conversations"
	KindQuestions     = "questions"
	KindMessages      = "messages"
)

const (
	defaultMaxResults      = 20
	maxMaxResults          = 100
	defaultMaxSuggestions  = 5
	suggestionEditDistance = 2
	excerptLength          = 200
)

// Config sets the engine-wide defaults a request can override. Zero values
// fall back to the constants above.
type Config struct {
	MaxResults        int     // page size when the request sets none
	MinRelevanceScore float64 // relevance floor when the request sets none
	MaxSuggestions    int     // suggestion cap for empty result sets
}

// suggestionVocabulary is the fixed domain vocabulary used to propose
// alternate terms when a search comes back empty.
var suggestionVocabulary = []string{
	"insulin", "medication", "glucose", "diabetes", "diet", "exercise",
	"symptoms", "appointment", "doctor", "prescription", "coverage",
	"billing", "emergency", "dosage", "monitor", "supplies",
	"insulina", "medicamento", "glucosa", "azucar", "cita", "sintomas",
}

type Request struct {
	Query             string          `json:"query"`
	SearchIn          []string        `json:"searchIn,omitempty"`
	Filters           *filter.Options `json:"filters,omitempty"`
	MaxResults        int             `json:"maxResults,omitempty"`
	MinRelevanceScore float64         `json:"minRelevanceScore,omitempty"`
	Fuzzy             bool            `json:"fuzzyMatch,omitempty"`
	CaseSensitive     bool            `json:"caseSensitive,omitempty"`
}

type Result struct {
	Type       string    `json:"type"`
	Score      float64   `json:"relevanceScore"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	Highlights []string  `json:"highlights,omitempty"`
	SourceID   string    `json:"sourceId"`
	Timestamp  time.Time `json:"timestamp"`
}

type Response struct {
	Results         []Result `json:"results"`
	TotalCount      int      `json:"totalCount"`
	ExecutionTimeMS int64    `json:"executionTimeMs"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

type Engine struct {
	store    storage.RecordReader
	filters  *filter.Engine
	cfg      Config
	breakers map[string]*circuitbreaker.CircuitBreaker
}

func NewEngine(store storage.RecordReader, filters *filter.Engine, cfg Config) *Engine {
	if cfg.MaxResults <= 0 || cfg.MaxResults > maxMaxResults {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = defaultMaxSuggestions
	}

	breakers := make(map[string]*circuitbreaker.CircuitBreaker)
	for _, kind := range []string{KindConversations, KindQuestions, KindMessages} {
		breakers[kind] = circuitbreaker.NewCircuitBreaker("search-"+kind, circuitbreaker.Config{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		})
	}

	return &Engine{
		store:    store,
		filters:  filters,
		cfg:      cfg,
		breakers: breakers,
	}
}

// Search fans the query out across the selected record kinds, scores each
// candidate, and merges the hits by descending relevance. A kind whose store
// read fails contributes zero results; the failure is logged, not propagated.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if req.MaxResults < 0 || req.MaxResults > maxMaxResults {
		return nil, fmt.Errorf("maxResults must be between 1 and %d, got %d", maxMaxResults, req.MaxResults)
	}
	kinds := req.SearchIn
	if len(kinds) == 0 {
		kinds = []string{KindConversations, KindQuestions, KindMessages}
	}
	for _, kind := range kinds {
		if kind != KindConversations && kind != KindQuestions && kind != KindMessages {
			return nil, fmt.Errorf("unsupported search kind %q", kind)
		}
	}
	if req.Filters != nil {
		if err := filter.Validate(*req.Filters); err != nil {
			return nil, err
		}
	}

	startTime := time.Now()
	tokens := relevance.Tokenize(req.Query, req.CaseSensitive)
	scoreOpts := relevance.Options{CaseSensitive: req.CaseSensitive, Fuzzy: req.Fuzzy}

	var results []Result
	for _, kind := range kinds {
		var kindResults []Result
		err := e.breakers[kind].Execute(ctx, func() error {
			var searchErr error
			switch kind {
			case KindConversations:
				kindResults, searchErr = e.searchConversations(ctx, req, tokens, scoreOpts)
			case KindQuestions:
				kindResults, searchErr = e.searchQuestions(ctx, req, tokens, scoreOpts)
			case KindMessages:
				kindResults, searchErr = e.searchMessages(ctx, req, tokens, scoreOpts)
			}
			return searchErr
		})
		if err != nil {
			logger.Warn("Search kind unavailable, continuing with partial results",
				zap.String("kind", kind),
				zap.Error(err),
			)
			continue
		}
		results = append(results, kindResults...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = e.cfg.MaxResults
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	// The relevance floor trims the truncated page; it never re-expands it.
	minScore := req.MinRelevanceScore
	if minScore == 0 {
		minScore = e.cfg.MinRelevanceScore
	}
	if minScore > 0 {
		kept := results[:0]
		for _, r := range results {
			if r.Score >= minScore {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	resp := &Response{
		Results:         results,
		TotalCount:      len(results),
		ExecutionTimeMS: time.Since(startTime).Milliseconds(),
	}
	if len(results) == 0 {
		resp.Suggestions = suggestN(req.Query, e.cfg.MaxSuggestions)
	}

	logger.Info("Search executed",
		zap.String("query", req.Query),
		zap.Int("results", len(results)),
		zap.Int64("execution_ms", resp.ExecutionTimeMS),
	)

	return resp, nil
}

func (e *Engine) searchConversations(ctx context.Context, req Request, tokens []string, opts relevance.Options) ([]Result, error) {
	filterOpts := filter.Options{}
	if req.Filters != nil {
		filterOpts = *req.Filters
	}

	candidates, err := e.filters.Collect(ctx, filterOpts)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, conv := range candidates {
		content := conversationText(ctx, e.store, conv)
		score := relevance.Score(content, tokens, opts)
		if score <= 0 {
			continue
		}

		results = append(results, Result{
			Type:       KindConversations,
			Score:      score,
			Title:      conversationTitle(conv),
			Excerpt:    excerpt(content),
			Highlights: relevance.ExtractHighlights(content, tokens, opts),
			SourceID:   conv.ID,
			Timestamp:  conv.StartedAt,
		})
	}
	return results, nil
}

func (e *Engine) searchQuestions(ctx context.Context, req Request, tokens []string, opts relevance.Options) ([]Result, error) {
	start, end := searchRange(req.Filters)
	questions, err := e.store.GetQuestionsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, q := range questions {
		score := relevance.Score(q.OriginalText, tokens, opts)
		if score <= 0 {
			continue
		}

		results = append(results, Result{
			Type:       KindQuestions,
			Score:      score,
			Title:      excerpt(q.OriginalText),
			Excerpt:    excerpt(q.OriginalText),
			Highlights: relevance.ExtractHighlights(q.OriginalText, tokens, opts),
			SourceID:   q.Fingerprint,
			Timestamp:  q.LastAskedAt,
		})
	}
	return results, nil
}

func (e *Engine) searchMessages(ctx context.Context, req Request, tokens []string, opts relevance.Options) ([]Result, error) {
	start, end := searchRange(req.Filters)
	messages, err := e.store.GetMessagesByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, msg := range messages {
		score := relevance.Score(msg.Content, tokens, opts)
		if score <= 0 {
			continue
		}

		results = append(results, Result{
			Type:       KindMessages,
			Score:      score,
			Title:      fmt.Sprintf("Message %d in conversation %s", msg.Position, msg.ConversationID),
			Excerpt:    excerpt(msg.Content),
			Highlights: relevance.ExtractHighlights(msg.Content, tokens, opts),
			SourceID:   fmt.Sprintf("%s:%d", msg.ConversationID, msg.Position),
			Timestamp:  msg.Timestamp,
		})
	}
	return results, nil
}

// suggestN proposes up to limit vocabulary terms within edit distance 2 of
// the query.
func suggestN(query string, limit int) []string {
	query = strings.ToLower(strings.TrimSpace(query))

	var suggestions []string
	for _, term := range suggestionVocabulary {
		if relevance.Levenshtein(query, term) <= suggestionEditDistance {
			suggestions = append(suggestions, term)
			if len(suggestions) == limit {
				break
			}
		}
	}
	return suggestions
}

// conversationText builds the searchable text for a conversation: user name,
// escalation reason, and the concatenated message contents. A failed message
// read degrades to the conversation attributes alone.
func conversationText(ctx context.Context, store storage.RecordReader, conv models.ConversationRecord) string {
	var parts []string
	if conv.UserName != nil {
		parts = append(parts, *conv.UserName)
	}
	if conv.EscalationReason != nil {
		parts = append(parts, *conv.EscalationReason)
	}

	messages, err := store.GetMessagesForConversation(ctx, conv.ID)
	if err != nil {
		logger.Warn("Failed to load conversation messages for search",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	} else {
		for _, msg := range messages {
			parts = append(parts, msg.Content)
		}
	}

	return strings.Join(parts, " ")
}

func conversationTitle(conv models.ConversationRecord) string {
	if conv.UserName != nil && *conv.UserName != "" {
		return fmt.Sprintf("Conversation with %s", *conv.UserName)
	}
	return fmt.Sprintf("Conversation %s", conv.ID)
}

// excerpt truncates to excerptLength bytes, backing up to a rune boundary so
// multi-byte characters are never split.
func excerpt(content string) string {
	if len(content) <= excerptLength {
		return content
	}
	cut := excerptLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func searchRange(opts *filter.Options) (time.Time, time.Time) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC().Add(time.Hour)
	if opts != nil {
		if opts.StartDate != nil {
			start = *opts.StartDate
		}
		if opts.EndDate != nil {
			end = *opts.EndDate
		}
	}
	return start, end
}
