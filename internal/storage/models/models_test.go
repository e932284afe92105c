package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserveKeepsCounterInvariant(t *testing.T) {
	q := QuestionRecord{}
	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	observations := []struct {
		answered   bool
		escalated  bool
		confidence float64
	}{
		{true, false, 0.9},
		{false, false, 0.2},
		{false, true, 0.1},
		{true, false, 0.8},
	}

	for i, obs := range observations {
		q.Observe(obs.answered, obs.escalated, obs.confidence, at.Add(time.Duration(i)*time.Hour))
		assert.Equal(t, q.Count, q.AnsweredCount+q.UnansweredCount, "after observation %d", i)
	}

	assert.Equal(t, 4, q.Count)
	assert.Equal(t, 2, q.AnsweredCount)
	assert.Equal(t, 2, q.UnansweredCount)
	assert.Equal(t, 1, q.EscalationCount)
	assert.InDelta(t, 0.5, q.AvgConfidence, 1e-9)
	assert.Equal(t, at.Add(3*time.Hour), q.LastAskedAt)
}

func TestObserveKeepsLatestTimestamp(t *testing.T) {
	q := QuestionRecord{}
	later := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	earlier := later.AddDate(0, 0, -3)

	q.Observe(true, false, 0.5, later)
	q.Observe(false, false, 0.5, earlier)

	// An out-of-order observation never moves LastAskedAt backwards.
	assert.Equal(t, later, q.LastAskedAt)
}

func TestEscalated(t *testing.T) {
	assert.True(t, ConversationRecord{Outcome: OutcomeEscalated}.Escalated())
	assert.False(t, ConversationRecord{Outcome: OutcomeResolved}.Escalated())
	assert.False(t, ConversationRecord{Outcome: OutcomeAbandoned}.Escalated())
}
