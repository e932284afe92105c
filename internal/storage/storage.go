// Package storage defines the record-access and export-sink capabilities the
// analytics engines are constructed with. Implementations live in subpackages.
package storage

import (
	"context"
	"time"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/models"
)

// RecordReader is the read surface over raw interaction records. Engines hold
// a RecordReader and nothing else; there is no ambient service locator.
type RecordReader interface {
	GetConversationsByDateRange(ctx context.Context, start, end time.Time) ([]models.ConversationRecord, error)
	GetMessagesByDateRange(ctx context.Context, start, end time.Time) ([]models.MessageRecord, error)
	GetQuestionsByDateRange(ctx context.Context, start, end time.Time) ([]models.QuestionRecord, error)
	GetQuestionsByCategory(ctx context.Context, category string, limit int) ([]models.QuestionRecord, error)
	GetQuestionsByLanguage(ctx context.Context, language string, limit int) ([]models.QuestionRecord, error)
	GetMessagesForConversation(ctx context.Context, conversationID string) ([]models.MessageRecord, error)
}

// ExportSink receives finished export payloads and returns a download URL.
type ExportSink interface {
	StoreExport(ctx context.Context, exportID, filename string, data []byte, format string) (string, error)
}
