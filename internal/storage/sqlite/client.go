package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/utils"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		message_count INTEGER NOT NULL DEFAULT 0,
		avg_confidence REAL,
		outcome TEXT NOT NULL,
		escalation_reason TEXT,
		user_name TEXT,
		zip_code TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_started ON conversations(started_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_outcome ON conversations(outcome);
	CREATE INDEX IF NOT EXISTS idx_conversations_language ON conversations(language);

	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL,
		escalation_triggered INTEGER NOT NULL DEFAULT 0,
		language TEXT NOT NULL DEFAULT 'en',
		PRIMARY KEY (conversation_id, position),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);

	CREATE TABLE IF NOT EXISTS questions (
		fingerprint TEXT PRIMARY KEY,
		original_text TEXT NOT NULL,
		normalized_text TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		count INTEGER NOT NULL DEFAULT 0,
		answered_count INTEGER NOT NULL DEFAULT 0,
		unanswered_count INTEGER NOT NULL DEFAULT 0,
		escalation_count INTEGER NOT NULL DEFAULT 0,
		total_confidence REAL NOT NULL DEFAULT 0,
		avg_confidence REAL NOT NULL DEFAULT 0,
		language TEXT NOT NULL DEFAULT 'en',
		last_asked_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category);
	CREATE INDEX IF NOT EXISTS idx_questions_language ON questions(language);
	CREATE INDEX IF NOT EXISTS idx_questions_last_asked ON questions(last_asked_at);

	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		format TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exports_expires ON exports(expires_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertConversation(ctx context.Context, conv *models.ConversationRecord) error {
	query := `
		INSERT INTO conversations (id, started_at, ended_at, language, message_count,
			avg_confidence, outcome, escalation_reason, user_name, zip_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		conv.ID,
		conv.StartedAt.Unix(),
		conv.EndedAt.Unix(),
		conv.Language,
		conv.MessageCount,
		conv.AvgConfidence,
		conv.Outcome,
		conv.EscalationReason,
		conv.UserName,
		conv.ZipCode,
	)

	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	logger.Debug("Conversation inserted", zap.String("conversation_id", conv.ID))
	return nil
}

func (c *Client) InsertMessage(ctx context.Context, msg *models.MessageRecord) error {
	query := `
		INSERT INTO messages (conversation_id, position, timestamp, role, content,
			confidence, escalation_triggered, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	escalationTriggered := 0
	if msg.EscalationTriggered {
		escalationTriggered = 1
	}

	_, err := c.db.ExecContext(ctx, query,
		msg.ConversationID,
		msg.Position,
		msg.Timestamp.Unix(),
		msg.Role,
		msg.Content,
		msg.Confidence,
		escalationTriggered,
		msg.Language,
	)

	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// RecordQuestion upserts a deduplicated question, keeping the append-only
// counter invariant answered_count + unanswered_count = count.
func (c *Client) RecordQuestion(ctx context.Context, originalText, category, language string, answered, escalated bool, confidence float64, at time.Time) error {
	normalized := utils.NormalizeText(originalText)
	fingerprint := utils.Fingerprint(normalized)

	answeredInc := 0
	unansweredInc := 0
	if answered {
		answeredInc = 1
	} else {
		unansweredInc = 1
	}
	escalationInc := 0
	if escalated {
		escalationInc = 1
	}

	query := `
		INSERT INTO questions (fingerprint, original_text, normalized_text, category,
			count, answered_count, unanswered_count, escalation_count,
			total_confidence, avg_confidence, language, last_asked_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			count = count + 1,
			answered_count = answered_count + excluded.answered_count,
			unanswered_count = unanswered_count + excluded.unanswered_count,
			escalation_count = escalation_count + excluded.escalation_count,
			total_confidence = total_confidence + excluded.total_confidence,
			avg_confidence = (total_confidence + excluded.total_confidence) / (count + 1),
			last_asked_at = MAX(last_asked_at, excluded.last_asked_at)
	`

	_, err := c.db.ExecContext(ctx, query,
		fingerprint,
		originalText,
		normalized,
		category,
		answeredInc,
		unansweredInc,
		escalationInc,
		confidence,
		confidence,
		language,
		at.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}

	return nil
}

func (c *Client) GetConversationsByDateRange(ctx context.Context, start, end time.Time) ([]models.ConversationRecord, error) {
	query := `
		SELECT id, started_at, ended_at, language, message_count, avg_confidence,
			outcome, escalation_reason, user_name, zip_code
		FROM conversations
		WHERE started_at >= ? AND started_at < ?
		ORDER BY started_at ASC
	`

	rows, err := c.db.QueryContext(ctx, query, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	var records []models.ConversationRecord
	for rows.Next() {
		var r models.ConversationRecord
		var startedAt, endedAt int64

		err := rows.Scan(&r.ID, &startedAt, &endedAt, &r.Language, &r.MessageCount,
			&r.AvgConfidence, &r.Outcome, &r.EscalationReason, &r.UserName, &r.ZipCode)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.EndedAt = time.Unix(endedAt, 0).UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) GetMessagesByDateRange(ctx context.Context, start, end time.Time) ([]models.MessageRecord, error) {
	query := `
		SELECT conversation_id, position, timestamp, role, content, confidence,
			escalation_triggered, language
		FROM messages
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY conversation_id, position
	`

	rows, err := c.db.QueryContext(ctx, query, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (c *Client) GetMessagesForConversation(ctx context.Context, conversationID string) ([]models.MessageRecord, error) {
	query := `
		SELECT conversation_id, position, timestamp, role, content, confidence,
			escalation_triggered, language
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position
	`

	rows, err := c.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	for rows.Next() {
		var r models.MessageRecord
		var ts int64
		var escalationTriggered int

		err := rows.Scan(&r.ConversationID, &r.Position, &ts, &r.Role, &r.Content,
			&r.Confidence, &escalationTriggered, &r.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Timestamp = time.Unix(ts, 0).UTC()
		r.EscalationTriggered = escalationTriggered == 1
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) GetQuestionsByDateRange(ctx context.Context, start, end time.Time) ([]models.QuestionRecord, error) {
	query := questionSelect + ` WHERE last_asked_at >= ? AND last_asked_at < ? ORDER BY last_asked_at ASC`

	rows, err := c.db.QueryContext(ctx, query, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

func (c *Client) GetQuestionsByCategory(ctx context.Context, category string, limit int) ([]models.QuestionRecord, error) {
	query := questionSelect + ` WHERE category = ? ORDER BY count DESC LIMIT ?`

	rows, err := c.db.QueryContext(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by category: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

func (c *Client) GetQuestionsByLanguage(ctx context.Context, language string, limit int) ([]models.QuestionRecord, error) {
	query := questionSelect + ` WHERE language = ? ORDER BY count DESC LIMIT ?`

	rows, err := c.db.QueryContext(ctx, query, language, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by language: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

const questionSelect = `
	SELECT fingerprint, original_text, normalized_text, category, count,
		answered_count, unanswered_count, escalation_count, total_confidence,
		avg_confidence, language, last_asked_at
	FROM questions`

func scanQuestions(rows *sql.Rows) ([]models.QuestionRecord, error) {
	var records []models.QuestionRecord
	for rows.Next() {
		var r models.QuestionRecord
		var lastAsked int64

		err := rows.Scan(&r.Fingerprint, &r.OriginalText, &r.NormalizedText, &r.Category,
			&r.Count, &r.AnsweredCount, &r.UnansweredCount, &r.EscalationCount,
			&r.TotalConfidence, &r.AvgConfidence, &r.Language, &lastAsked)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.LastAskedAt = time.Unix(lastAsked, 0).UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

// StoreExport persists export bytes and returns the relative download URL.
func (c *Client) StoreExport(ctx context.Context, exportID, filename string, data []byte, format string) (string, error) {
	query := `INSERT INTO exports (id, filename, format, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`

	now := time.Now()
	_, err := c.db.ExecContext(ctx, query,
		exportID,
		filename,
		format,
		data,
		now.Unix(),
		now.Add(24*time.Hour).Unix(),
	)

	if err != nil {
		return "", fmt.Errorf("failed to store export: %w", err)
	}

	logger.Info("Export stored",
		zap.String("export_id", exportID),
		zap.String("format", format),
		zap.Int("bytes", len(data)),
	)

	return fmt.Sprintf("/api/v1/exports/%s/download", exportID), nil
}

// GetExport returns the stored payload, or an error if it is missing or expired.
func (c *Client) GetExport(ctx context.Context, exportID string) (filename string, data []byte, format string, err error) {
	query := `SELECT filename, data, format, expires_at FROM exports WHERE id = ?`

	var expiresAt int64
	err = c.db.QueryRowContext(ctx, query, exportID).Scan(&filename, &data, &format, &expiresAt)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to get export: %w", err)
	}

	if time.Now().Unix() > expiresAt {
		return "", nil, "", fmt.Errorf("export %s has expired", exportID)
	}

	return filename, data, format, nil
}
