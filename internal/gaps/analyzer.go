// Package gaps identifies unanswered questions in conversation logs, groups
// them into knowledge gaps with severity scores, derives prioritized
// improvement opportunities, and computes per-category trends. Every public
// operation is a pure function of the record snapshot it reads.
package gaps

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/retry"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/utils"
)

// Reasons a question counts as unanswered.
const (
	ReasonNoTimelyReply   = "no_timely_reply"
	ReasonLowConfidence   = "low_confidence"
	ReasonGenericResponse = "generic_response"
)

const (
	severityFrequencyCap     = 20
	severityFrequencyWeight  = 0.6
	severityConfidenceWeight = 0.4
	maxSampleQuestions       = 5
)

type Config struct {
	// LowConfidenceThreshold is the one configurable definition of a
	// low-confidence reply used across the analyzer.
	LowConfidenceThreshold float64
	MinOccurrences         int
	ReplyWindow            time.Duration
	TopCategories          int
}

func DefaultConfig() Config {
	return Config{
		LowConfidenceThreshold: 0.7,
		MinOccurrences:         3,
		ReplyWindow:            60 * time.Second,
		TopCategories:          10,
	}
}

type Analyzer struct {
	store storage.RecordReader
	cfg   Config
}

func NewAnalyzer(store storage.RecordReader, cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.LowConfidenceThreshold == 0 {
		cfg.LowConfidenceThreshold = def.LowConfidenceThreshold
	}
	if cfg.MinOccurrences == 0 {
		cfg.MinOccurrences = def.MinOccurrences
	}
	if cfg.ReplyWindow == 0 {
		cfg.ReplyWindow = def.ReplyWindow
	}
	if cfg.TopCategories == 0 {
		cfg.TopCategories = def.TopCategories
	}
	return &Analyzer{store: store, cfg: cfg}
}

type UnansweredQuestion struct {
	ConversationID string    `json:"conversationId"`
	Text           string    `json:"text"`
	Normalized     string    `json:"normalized"`
	Category       string    `json:"category"`
	Subcategory    string    `json:"subcategory,omitempty"`
	Language       string    `json:"language"`
	Confidence     float64   `json:"confidence"`
	AskedAt        time.Time `json:"askedAt"`
	Reason         string    `json:"reason"`
}

type TrendPoint struct {
	Period time.Time `json:"period"`
	Count  int       `json:"count"`
}

type Gap struct {
	Category           string         `json:"category"`
	Frequency          int            `json:"frequency"`
	AvgConfidence      float64        `json:"avgConfidence"`
	SampleQuestions    []string       `json:"sampleQuestions"`
	Subcategories      map[string]int `json:"subcategories"`
	Trend              []TrendPoint   `json:"trend"`
	Severity           float64        `json:"severity"`
	RecommendedActions []string       `json:"recommendedActions"`
}

type Opportunity struct {
	Category        string  `json:"category"`
	PriorityScore   float64 `json:"priorityScore"`
	Effort          string  `json:"effort"`
	ProjectedImpact string  `json:"projectedImpact"`
	Frequency       int     `json:"frequency"`
	Severity        float64 `json:"severity"`
}

// IdentifyUnanswered walks every user question in range and keeps the ones
// with no timely, confident, non-generic bot reply.
func (a *Analyzer) IdentifyUnanswered(ctx context.Context, start, end time.Time) ([]UnansweredQuestion, error) {
	messages, err := a.fetchMessages(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byConversation := make(map[string][]models.MessageRecord)
	var order []string
	for _, msg := range messages {
		if _, ok := byConversation[msg.ConversationID]; !ok {
			order = append(order, msg.ConversationID)
		}
		byConversation[msg.ConversationID] = append(byConversation[msg.ConversationID], msg)
	}

	var unanswered []UnansweredQuestion
	for _, convID := range order {
		convMessages := byConversation[convID]
		sort.SliceStable(convMessages, func(i, j int) bool {
			return convMessages[i].Position < convMessages[j].Position
		})

		for i, msg := range convMessages {
			if msg.Role != models.RoleUser || !IsQuestion(msg.Content, msg.Language) {
				continue
			}

			reply := nextBotReply(convMessages, i)
			reason, confidence, ok := a.classifyReply(msg, reply)
			if !ok {
				continue
			}

			category, subcategory := Categorize(msg.Content, msg.Language)
			unanswered = append(unanswered, UnansweredQuestion{
				ConversationID: convID,
				Text:           msg.Content,
				Normalized:     utils.NormalizeText(msg.Content),
				Category:       category,
				Subcategory:    subcategory,
				Language:       msg.Language,
				Confidence:     confidence,
				AskedAt:        msg.Timestamp,
				Reason:         reason,
			})
		}
	}

	logger.Info("Unanswered questions identified",
		zap.Int("count", len(unanswered)),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	return unanswered, nil
}

// classifyReply decides whether a question counts as unanswered and why.
// A missing confidence score defaults to 0.
func (a *Analyzer) classifyReply(question models.MessageRecord, reply *models.MessageRecord) (reason string, confidence float64, unanswered bool) {
	if reply == nil || reply.Timestamp.Sub(question.Timestamp) > a.cfg.ReplyWindow {
		return ReasonNoTimelyReply, 0, true
	}

	if reply.Confidence != nil {
		confidence = *reply.Confidence
	}
	if IsGenericResponse(reply.Content) {
		return ReasonGenericResponse, confidence, true
	}
	if confidence < a.cfg.LowConfidenceThreshold {
		return ReasonLowConfidence, confidence, true
	}
	return "", confidence, false
}

func nextBotReply(messages []models.MessageRecord, questionIndex int) *models.MessageRecord {
	for i := questionIndex + 1; i < len(messages); i++ {
		if messages[i].Role == models.RoleBot {
			return &messages[i]
		}
	}
	return nil
}

// Analyze aggregates unanswered questions into knowledge gaps, sorted by
// descending severity. Categories below MinOccurrences are discarded.
func (a *Analyzer) Analyze(ctx context.Context, start, end time.Time) ([]Gap, error) {
	unanswered, err := a.IdentifyUnanswered(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]UnansweredQuestion)
	for _, q := range unanswered {
		byCategory[q.Category] = append(byCategory[q.Category], q)
	}

	var gaps []Gap
	for category, questions := range byCategory {
		if len(questions) < a.cfg.MinOccurrences {
			continue
		}

		var confidenceSum float64
		subcategories := make(map[string]int)
		var samples []string
		for _, q := range questions {
			confidenceSum += q.Confidence
			if q.Subcategory != "" {
				subcategories[q.Subcategory]++
			}
			if len(samples) < maxSampleQuestions {
				samples = append(samples, q.Text)
			}
		}

		frequency := len(questions)
		avgConfidence := confidenceSum / float64(frequency)
		severity := Severity(frequency, avgConfidence)

		gaps = append(gaps, Gap{
			Category:           category,
			Frequency:          frequency,
			AvgConfidence:      avgConfidence,
			SampleQuestions:    samples,
			Subcategories:      subcategories,
			Trend:              dailyTrend(questions, start, end),
			Severity:           severity,
			RecommendedActions: recommendActions(category, severity),
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Severity > gaps[j].Severity
	})

	logger.Info("Knowledge gaps analyzed", zap.Int("gaps", len(gaps)))
	return gaps, nil
}

// Severity combines capped frequency and confidence deficit:
// 0.6*min(frequency/20, 1) + 0.4*(1 - avgConfidence).
func Severity(frequency int, avgConfidence float64) float64 {
	normFrequency := float64(frequency) / severityFrequencyCap
	if normFrequency > 1 {
		normFrequency = 1
	}
	return severityFrequencyWeight*normFrequency + severityConfidenceWeight*(1-avgConfidence)
}

// Opportunities ranks gaps by a composite priority and truncates to limit.
func (a *Analyzer) Opportunities(ctx context.Context, start, end time.Time, limit int) ([]Opportunity, error) {
	if limit <= 0 {
		limit = a.cfg.TopCategories
	}

	gaps, err := a.Analyze(ctx, start, end)
	if err != nil {
		return nil, err
	}

	opportunities := make([]Opportunity, 0, len(gaps))
	for _, gap := range gaps {
		normFrequency := float64(gap.Frequency) / severityFrequencyCap
		if normFrequency > 1 {
			normFrequency = 1
		}

		priority := 0.4*normFrequency + 0.4*gap.Severity + 0.2*trendScore(gap.Trend)
		if priority < 0 {
			priority = 0
		}
		if priority > 1 {
			priority = 1
		}

		opportunities = append(opportunities, Opportunity{
			Category:        gap.Category,
			PriorityScore:   priority,
			Effort:          effortFor(gap.Frequency),
			ProjectedImpact: fmt.Sprintf("Answering %q questions would resolve %d unanswered interactions in this period", gap.Category, gap.Frequency),
			Frequency:       gap.Frequency,
			Severity:        gap.Severity,
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].PriorityScore > opportunities[j].PriorityScore
	})
	if len(opportunities) > limit {
		opportunities = opportunities[:limit]
	}

	return opportunities, nil
}

// trendScore compares the mean of the last 7 trend points against the first
// 7; positive means the gap is worsening. Clamped to [-1, 1].
func trendScore(trend []TrendPoint) float64 {
	if len(trend) == 0 {
		return 0
	}

	window := 7
	if len(trend) < window {
		window = len(trend)
	}

	var firstSum, lastSum float64
	for _, p := range trend[:window] {
		firstSum += float64(p.Count)
	}
	for _, p := range trend[len(trend)-window:] {
		lastSum += float64(p.Count)
	}
	firstMean := firstSum / float64(window)
	lastMean := lastSum / float64(window)

	base := firstMean
	if base < 1 {
		base = 1
	}
	score := (lastMean - firstMean) / base
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

func effortFor(frequency int) string {
	switch {
	case frequency < 5:
		return "low"
	case frequency < 15:
		return "medium"
	default:
		return "high"
	}
}

func recommendActions(category string, severity float64) []string {
	actions := []string{
		fmt.Sprintf("Add or expand knowledge base content for %q", category),
		fmt.Sprintf("Review bot replies to %q questions flagged as low confidence", category),
	}
	if severity >= 0.7 {
		actions = append(actions, "Escalate to the content team for immediate review")
	}
	return actions
}

func dailyTrend(questions []UnansweredQuestion, start, end time.Time) []TrendPoint {
	counts := make(map[time.Time]int)
	for _, q := range questions {
		day := q.AskedAt.UTC().Truncate(24 * time.Hour)
		counts[day]++
	}

	var points []TrendPoint
	for day := start.UTC().Truncate(24 * time.Hour); day.Before(end); day = day.AddDate(0, 0, 1) {
		points = append(points, TrendPoint{Period: day, Count: counts[day]})
	}
	return points
}

// fetchMessages fans out one read per UTC day bucket. Buckets target disjoint
// time slices, so the reads run concurrently; a bucket that still fails after
// retrying degrades to "no records for that bucket".
func (a *Analyzer) fetchMessages(ctx context.Context, start, end time.Time) ([]models.MessageRecord, error) {
	type bucket struct {
		start, end time.Time
	}

	var buckets []bucket
	for day := start.UTC().Truncate(24 * time.Hour); day.Before(end); day = day.AddDate(0, 0, 1) {
		bucketStart := day
		if bucketStart.Before(start) {
			bucketStart = start
		}
		bucketEnd := day.AddDate(0, 0, 1)
		if bucketEnd.After(end) {
			bucketEnd = end
		}
		buckets = append(buckets, bucket{start: bucketStart, end: bucketEnd})
	}
	if len(buckets) == 0 {
		buckets = append(buckets, bucket{start: start, end: end})
	}

	results := make([][]models.MessageRecord, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range buckets {
		i, b := i, b
		g.Go(func() error {
			records, err := retry.DoWithResult(gctx, retry.DefaultConfig(), func() ([]models.MessageRecord, error) {
				return a.store.GetMessagesByDateRange(gctx, b.start, b.end)
			})
			if err != nil {
				logger.Warn("Message bucket read failed, treating as empty",
					zap.Time("bucket_start", b.start),
					zap.Error(err),
				)
				return nil
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var messages []models.MessageRecord
	for _, r := range results {
		messages = append(messages, r...)
	}

	// Deduplicate in case a bucket boundary double-counts an edge record.
	seen := make(map[string]bool, len(messages))
	deduped := messages[:0]
	for _, m := range messages {
		key := m.ConversationID + ":" + fmt.Sprint(m.Position)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, m)
	}

	return deduped, nil
}
