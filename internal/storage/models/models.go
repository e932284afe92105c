package models

import "time"

// Conversation outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeEscalated = "escalated"
	OutcomeAbandoned = "abandoned"
)

// Sender roles on a message.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// ConversationRecord is a snapshot of a finished (or snapshotted) conversation.
// Analytics treats it as read-only.
type ConversationRecord struct {
	ID               string
	StartedAt        time.Time
	EndedAt          time.Time
	Language         string
	MessageCount     int
	AvgConfidence    *float64
	Outcome          string
	EscalationReason *string
	UserName         *string
	ZipCode          *string
}

// Escalated reports whether the conversation ended in a human handoff.
func (c ConversationRecord) Escalated() bool {
	return c.Outcome == OutcomeEscalated
}

// MessageRecord belongs to exactly one conversation, referenced by ID.
type MessageRecord struct {
	ConversationID      string
	Position            int
	Timestamp           time.Time
	Role                string
	Content             string
	Confidence          *float64
	EscalationTriggered bool
	Language            string
}

// QuestionRecord is a deduplicated question fingerprint with append-only
// per-period counters. AnsweredCount + UnansweredCount == Count at every
// update; counters never decrease.
type QuestionRecord struct {
	Fingerprint     string
	OriginalText    string
	NormalizedText  string
	Category        string
	Count           int
	AnsweredCount   int
	UnansweredCount int
	EscalationCount int
	TotalConfidence float64
	AvgConfidence   float64
	Language        string
	LastAskedAt     time.Time
}

// Observe folds one more sighting of the question into the counters,
// preserving the answered+unanswered=count invariant.
func (q *QuestionRecord) Observe(answered, escalated bool, confidence float64, at time.Time) {
	q.Count++
	if answered {
		q.AnsweredCount++
	} else {
		q.UnansweredCount++
	}
	if escalated {
		q.EscalationCount++
	}
	q.TotalConfidence += confidence
	q.AvgConfidence = q.TotalConfidence / float64(q.Count)
	if at.After(q.LastAskedAt) {
		q.LastAskedAt = at
	}
}
