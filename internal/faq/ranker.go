// Package faq ranks the most frequently asked questions, optionally scoped by
// category or language and re-ranked against a free-text query.
package faq

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/relevance"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	// fetchMultiplier over-fetches candidates so query re-ranking has
	// something to demote.
	fetchMultiplier = 5

	frequencyWeight = 0.7
	answeredWeight  = 0.3
)

type Options struct {
	Category string `json:"category,omitempty"`
	Language string `json:"language,omitempty"`
	Query    string `json:"query,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type Entry struct {
	Question     string    `json:"question"`
	Category     string    `json:"category"`
	Language     string    `json:"language"`
	Count        int       `json:"count"`
	AnsweredRate float64   `json:"answeredRate"`
	Score        float64   `json:"score"`
	LastAskedAt  time.Time `json:"lastAskedAt"`
}

type Ranker struct {
	store storage.RecordReader
}

func NewRanker(store storage.RecordReader) *Ranker {
	return &Ranker{store: store}
}

// Rank scores candidate questions by capped frequency and answered rate; with
// a query it additionally weights by text relevance (fuzzy on), so a question
// nobody phrased exactly still surfaces.
func (r *Ranker) Rank(ctx context.Context, opts Options) ([]Entry, error) {
	if opts.Limit < 0 || opts.Limit > maxLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxLimit, opts.Limit)
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	questions, err := r.fetch(ctx, opts, limit*fetchMultiplier)
	if err != nil {
		return nil, err
	}
	if opts.Language != "" {
		questions = filterByLanguage(questions, opts.Language)
	}
	if len(questions) == 0 {
		return []Entry{}, nil
	}

	maxCount := 0
	for _, q := range questions {
		if q.Count > maxCount {
			maxCount = q.Count
		}
	}

	var tokens []string
	if opts.Query != "" {
		tokens = relevance.Tokenize(opts.Query, false)
	}
	scoreOpts := relevance.Options{Fuzzy: true}

	entries := make([]Entry, 0, len(questions))
	for _, q := range questions {
		answeredRate := 0.0
		if q.Count > 0 {
			answeredRate = float64(q.AnsweredCount) / float64(q.Count)
		}

		score := frequencyWeight*float64(q.Count)/float64(maxCount) + answeredWeight*answeredRate
		if tokens != nil {
			match := relevance.Score(q.OriginalText, tokens, scoreOpts)
			if match == 0 {
				continue
			}
			score *= match
		}

		entries = append(entries, Entry{
			Question:     q.OriginalText,
			Category:     q.Category,
			Language:     q.Language,
			Count:        q.Count,
			AnsweredRate: answeredRate,
			Score:        score,
			LastAskedAt:  q.LastAskedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	logger.Debug("FAQ ranking computed",
		zap.String("category", opts.Category),
		zap.String("language", opts.Language),
		zap.Int("entries", len(entries)),
	)

	return entries, nil
}

func (r *Ranker) fetch(ctx context.Context, opts Options, fetchLimit int) ([]models.QuestionRecord, error) {
	switch {
	case opts.Category != "":
		return r.store.GetQuestionsByCategory(ctx, opts.Category, fetchLimit)
	case opts.Language != "":
		return r.store.GetQuestionsByLanguage(ctx, opts.Language, fetchLimit)
	default:
		return r.store.GetQuestionsByDateRange(ctx, time.Unix(0, 0).UTC(), time.Now().UTC().Add(time.Hour))
	}
}

func filterByLanguage(questions []models.QuestionRecord, language string) []models.QuestionRecord {
	kept := questions[:0]
	for _, q := range questions {
		if q.Language == language {
			kept = append(kept, q)
		}
	}
	return kept
}
