package gaps

import (
	"context"
	"fmt"
	"os"
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

type fakeStore struct {
	messages []models.MessageRecord
}

func (f *fakeStore) GetConversationsByDateRange(ctx context.Context, start, end time.Time) ([]models.ConversationRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetMessagesByDateRange(ctx context.Context, start, end time.Time) ([]models.MessageRecord, error) {
	var inRange []models.MessageRecord
	for _, m := range f.messages {
		if !m.Timestamp.Before(start) && m.Timestamp.Before(end) {
			inRange = append(inRange, m)
		}
	}
	return inRange, nil
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

var analysisStart = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

func exchange(convID string, position int, at time.Time, question, reply string, confidence *float64) []models.MessageRecord {
	msgs := []models.MessageRecord{
		{ConversationID: convID, Position: position, Timestamp: at, Role: models.RoleUser, Content: question, Language: "en"},
	}
	if reply != "" {
		msgs = append(msgs, models.MessageRecord{
			ConversationID: convID, Position: position + 1, Timestamp: at.Add(5 * time.Second),
			Role: models.RoleBot, Content: reply, Confidence: confidence, Language: "en",
		})
	}
	return msgs
}

func TestSeverity(t *testing.T) {
	// 0.6*min(20/20,1) + 0.4*(1-0.3) = 0.88
	assert.InDelta(t, 0.88, Severity(20, 0.3), 1e-9)
	// Frequency is capped before weighting.
	assert.InDelta(t, Severity(20, 0.3), Severity(200, 0.3), 1e-9)
	assert.InDelta(t, 0.4, Severity(0, 0), 1e-9)
	assert.InDelta(t, 0.6, Severity(100, 1), 1e-9)
}

func TestIsQuestion(t *testing.T) {
	assert.True(t, IsQuestion("How do I take insulin?", "en"))
	assert.True(t, IsQuestion("how do i take insulin", "en"))
	assert.True(t, IsQuestion("¿Cómo tomo la insulina?", "es"))
	assert.True(t, IsQuestion("puedo comer fruta", "es"))
	assert.False(t, IsQuestion("Thanks for the help", "en"))
	assert.False(t, IsQuestion("", "en"))
}

func TestIsGenericResponse(t *testing.T) {
	assert.True(t, IsGenericResponse("I'm not sure about that, sorry."))
	assert.True(t, IsGenericResponse("No estoy seguro de eso."))
	assert.False(t, IsGenericResponse("Insulin should be stored in the fridge."))
}

func TestCategorize(t *testing.T) {
	category, subcategory := Categorize("How much insulin should I take?", "en")
	assert.Equal(t, "medication", category)
	assert.Equal(t, "insulin", subcategory)

	category, _ = Categorize("Cuanto cuesta con mi seguro?", "es")
	assert.Equal(t, "insurance", category)

	category, subcategory = Categorize("Tell me a joke", "en")
	assert.Equal(t, DefaultCategory, category)
	assert.Empty(t, subcategory)
}

func TestIdentifyUnansweredReasons(t *testing.T) {
	at := analysisStart.Add(12 * time.Hour)
	var msgs []models.MessageRecord
	// Confident, substantive reply: answered.
	msgs = append(msgs, exchange("c1", 0, at, "How do I store insulin?", "Keep unopened insulin in the fridge.", floatPtr(0.95))...)
	// Low confidence reply.
	msgs = append(msgs, exchange("c2", 0, at, "Can I split my metformin dose?", "Maybe, it depends.", floatPtr(0.3))...)
	// Generic deflection despite high confidence.
	msgs = append(msgs, exchange("c3", 0, at, "What snacks are safe?", "I'm not sure, please contact your care team.", floatPtr(0.9))...)
	// No bot reply at all.
	msgs = append(msgs, exchange("c4", 0, at, "Why is my vision blurry?", "", nil)...)

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{})
	unanswered, err := analyzer.IdentifyUnanswered(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 2))
	require.NoError(t, err)

	require.Len(t, unanswered, 3)
	reasons := make(map[string]string)
	for _, q := range unanswered {
		reasons[q.ConversationID] = q.Reason
	}
	assert.Equal(t, ReasonLowConfidence, reasons["c2"])
	assert.Equal(t, ReasonGenericResponse, reasons["c3"])
	assert.Equal(t, ReasonNoTimelyReply, reasons["c4"])
}

func TestIdentifyUnansweredReplyWindow(t *testing.T) {
	at := analysisStart.Add(12 * time.Hour)
	msgs := []models.MessageRecord{
		{ConversationID: "c1", Position: 0, Timestamp: at, Role: models.RoleUser, Content: "What is a normal glucose level?", Language: "en"},
		// Confident reply, but two minutes late.
		{ConversationID: "c1", Position: 1, Timestamp: at.Add(2 * time.Minute), Role: models.RoleBot, Content: "Between 80 and 130 before meals.", Confidence: floatPtr(0.9), Language: "en"},
	}

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{})
	unanswered, err := analyzer.IdentifyUnanswered(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, unanswered, 1)
	assert.Equal(t, ReasonNoTimelyReply, unanswered[0].Reason)
}

func TestAnalyzeMinOccurrences(t *testing.T) {
	at := analysisStart.Add(6 * time.Hour)
	var msgs []models.MessageRecord
	for i := 0; i < 4; i++ {
		msgs = append(msgs, exchange(fmt.Sprintf("med-%d", i), 0, at.Add(time.Duration(i)*time.Hour),
			"How much insulin do I need?", "I'm not sure.", floatPtr(0.2))...)
	}
	// A single diet question stays below the occurrence floor.
	msgs = append(msgs, exchange("diet-0", 0, at, "What carbs can I eat?", "", nil)...)

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{MinOccurrences: 3})
	gaps, err := analyzer.Analyze(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, gaps, 1)
	gap := gaps[0]
	assert.Equal(t, "medication", gap.Category)
	assert.Equal(t, 4, gap.Frequency)
	assert.Equal(t, map[string]int{"insulin": 4}, gap.Subcategories)
	assert.LessOrEqual(t, len(gap.SampleQuestions), 5)
	assert.InDelta(t, Severity(4, gap.AvgConfidence), gap.Severity, 1e-9)
	assert.NotEmpty(t, gap.RecommendedActions)
}

func TestAnalyzeSortsBySeverity(t *testing.T) {
	at := analysisStart.Add(6 * time.Hour)
	var msgs []models.MessageRecord
	for i := 0; i < 10; i++ {
		msgs = append(msgs, exchange(fmt.Sprintf("med-%d", i), 0, at, "How much insulin?", "", nil)...)
	}
	for i := 0; i < 3; i++ {
		msgs = append(msgs, exchange(fmt.Sprintf("diet-%d", i), 0, at, "What carbs can I eat?", "Hmm.", floatPtr(0.65))...)
	}

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{})
	gaps, err := analyzer.Analyze(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, gaps, 2)
	assert.Equal(t, "medication", gaps[0].Category)
	assert.GreaterOrEqual(t, gaps[0].Severity, gaps[1].Severity)
}

func TestOpportunities(t *testing.T) {
	at := analysisStart.Add(6 * time.Hour)
	var msgs []models.MessageRecord
	for i := 0; i < 20; i++ {
		msgs = append(msgs, exchange(fmt.Sprintf("med-%d", i), 0, at, "How much insulin?", "", nil)...)
	}
	for i := 0; i < 4; i++ {
		msgs = append(msgs, exchange(fmt.Sprintf("ins-%d", i), 0, at, "Does my insurance cover strips?", "", nil)...)
	}

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{})
	opportunities, err := analyzer.Opportunities(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 1), 10)
	require.NoError(t, err)

	require.Len(t, opportunities, 2)
	assert.Equal(t, "medication", opportunities[0].Category)
	assert.Equal(t, "high", opportunities[0].Effort)
	assert.Equal(t, "low", opportunities[1].Effort)
	for _, o := range opportunities {
		assert.GreaterOrEqual(t, o.PriorityScore, 0.0)
		assert.LessOrEqual(t, o.PriorityScore, 1.0)
	}
	assert.GreaterOrEqual(t, opportunities[0].PriorityScore, opportunities[1].PriorityScore)
}

func TestOpportunitiesLimit(t *testing.T) {
	at := analysisStart.Add(6 * time.Hour)
	var msgs []models.MessageRecord
	questions := []string{"How much insulin?", "What carbs can I eat?", "Why is my vision blurry?"}
	for g, q := range questions {
		for i := 0; i < 3; i++ {
			msgs = append(msgs, exchange(fmt.Sprintf("g%d-%d", g, i), 0, at, q, "", nil)...)
		}
	}

	analyzer := NewAnalyzer(&fakeStore{messages: msgs}, Config{})
	opportunities, err := analyzer.Opportunities(context.Background(), analysisStart, analysisStart.AddDate(0, 0, 1), 2)
	require.NoError(t, err)
	assert.Len(t, opportunities, 2)
}
