package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/filter"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/search"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

// Exportable record types.
const (
	TypeConversations = "conversations"
	TypeMessages      = "messages"
	TypeQuestions     = "questions"
	TypeEscalations   = "escalations"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	defaultExpiry     = 24 * time.Hour
	defaultMaxRecords = 10000
)

// Config sets the formatter-wide limits. Zero values fall back to the
// defaults above.
type Config struct {
	Expiry     time.Duration // how long a stored export stays downloadable
	MaxRecords int           // hard row cap, applied over the per-request one
}

// canonicalColumns fixes the column order for delimited and spreadsheet
// output; only columns present in the exported rows are emitted.
var canonicalColumns = []string{
	"sourceType", "id", "timestamp", "language", "outcome", "messageCount",
	"avgConfidence", "escalationReason", "userName", "zipCode",
	"position", "role", "content", "confidence",
	"category", "count", "answeredCount", "unansweredCount", "escalationCount",
	"relevanceScore", "title",
}

type Options struct {
	Types          []string        `json:"types"`
	Format         string          `json:"format"`
	Filters        *filter.Options `json:"filters,omitempty"`
	SearchOptions  *search.Request `json:"searchOptions,omitempty"`
	MaxRecords     int             `json:"maxRecords,omitempty"`
	IncludeHeaders bool            `json:"includeHeaders,omitempty"`
	Delimiter      string          `json:"delimiter,omitempty"`
}

type Result struct {
	ExportID    string    `json:"exportId"`
	Status      string    `json:"status"`
	Format      string    `json:"format"`
	RecordCount int       `json:"recordCount"`
	FileSize    int       `json:"fileSize"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Error       string    `json:"error,omitempty"`
}

// envelope is the structured-text output shape.
type envelope struct {
	ExportInfo exportInfo               `json:"exportInfo"`
	Data       []map[string]interface{} `json:"data"`
}

type exportInfo struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Filters     *filter.Options `json:"filters,omitempty"`
	RecordCount int             `json:"recordCount"`
}

type Formatter struct {
	store    storage.RecordReader
	filters  *filter.Engine
	searcher *search.Engine
	sink     storage.ExportSink
	cfg      Config
}

func NewFormatter(store storage.RecordReader, filters *filter.Engine, searcher *search.Engine, sink storage.ExportSink, cfg Config) *Formatter {
	if cfg.Expiry <= 0 {
		cfg.Expiry = defaultExpiry
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}

	return &Formatter{
		store:    store,
		filters:  filters,
		searcher: searcher,
		sink:     sink,
		cfg:      cfg,
	}
}

// Export collects, formats, and stores the requested rows. Collection,
// formatting, and sink failures come back inside the Result as status
// "failed"; only malformed options return an error.
func (f *Formatter) Export(ctx context.Context, opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	exportID := uuid.New().String()

	rows, err := f.collect(ctx, opts)
	if err != nil {
		logger.Error("Export collection failed", zap.String("export_id", exportID), zap.Error(err))
		return failed(exportID, opts.Format, err), nil
	}

	maxRecords := f.cfg.MaxRecords
	if opts.MaxRecords > 0 && opts.MaxRecords < maxRecords {
		maxRecords = opts.MaxRecords
	}
	if len(rows) > maxRecords {
		rows = rows[:maxRecords]
	}

	payload, err := f.format(exportID, rows, opts)
	if err != nil {
		logger.Error("Export formatting failed", zap.String("export_id", exportID), zap.Error(err))
		return failed(exportID, opts.Format, err), nil
	}

	filename := fmt.Sprintf("export_%s.%s", exportID, opts.Format)
	downloadURL, err := f.sink.StoreExport(ctx, exportID, filename, payload, opts.Format)
	if err != nil {
		logger.Error("Export storage failed", zap.String("export_id", exportID), zap.Error(err))
		return failed(exportID, opts.Format, err), nil
	}

	result := &Result{
		ExportID:    exportID,
		Status:      StatusCompleted,
		Format:      opts.Format,
		RecordCount: len(rows),
		FileSize:    len(payload),
		DownloadURL: downloadURL,
		ExpiresAt:   time.Now().Add(f.cfg.Expiry),
	}

	logger.Info("Export completed",
		zap.String("export_id", exportID),
		zap.String("format", opts.Format),
		zap.Int("records", result.RecordCount),
		zap.Int("bytes", result.FileSize),
	)

	return result, nil
}

func validate(opts Options) error {
	if len(opts.Types) == 0 {
		return fmt.Errorf("at least one export type is required")
	}
	for _, t := range opts.Types {
		switch t {
		case TypeConversations, TypeMessages, TypeQuestions, TypeEscalations:
		default:
			return fmt.Errorf("unsupported export type %q", t)
		}
	}
	switch opts.Format {
	case FormatJSON, FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if opts.MaxRecords < 0 {
		return fmt.Errorf("maxRecords must not be negative, got %d", opts.MaxRecords)
	}
	if len(opts.Delimiter) > 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	if opts.Filters != nil {
		if err := filter.Validate(*opts.Filters); err != nil {
			return err
		}
	}
	return nil
}

func failed(exportID, format string, err error) *Result {
	return &Result{
		ExportID: exportID,
		Status:   StatusFailed,
		Format:   format,
		Error:    err.Error(),
	}
}

func (f *Formatter) collect(ctx context.Context, opts Options) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}

	for _, exportType := range opts.Types {
		if opts.SearchOptions != nil {
			searched, err := f.collectSearched(ctx, exportType, opts)
			if err != nil {
				return nil, err
			}
			rows = append(rows, searched...)
			continue
		}

		collected, err := f.collectFiltered(ctx, exportType, opts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, collected...)
	}

	return rows, nil
}

// collectSearched routes a type through the search engine so the export
// carries relevance-ranked rows.
func (f *Formatter) collectSearched(ctx context.Context, exportType string, opts Options) ([]map[string]interface{}, error) {
	req := *opts.SearchOptions
	switch exportType {
	case TypeConversations, TypeEscalations:
		req.SearchIn = []string{search.KindConversations}
	case TypeMessages:
		req.SearchIn = []string{search.KindMessages}
	case TypeQuestions:
		req.SearchIn = []string{search.KindQuestions}
	}
	if opts.Filters != nil {
		req.Filters = opts.Filters
	}

	resp, err := f.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		rows = append(rows, map[string]interface{}{
			"sourceType":     exportType,
			"id":             r.SourceID,
			"timestamp":      r.Timestamp.Format(time.RFC3339),
			"title":          r.Title,
			"content":        r.Excerpt,
			"relevanceScore": r.Score,
		})
	}
	return rows, nil
}

func (f *Formatter) collectFiltered(ctx context.Context, exportType string, opts Options) ([]map[string]interface{}, error) {
	filterOpts := filter.Options{}
	if opts.Filters != nil {
		filterOpts = *opts.Filters
	}

	switch exportType {
	case TypeConversations, TypeEscalations:
		if exportType == TypeEscalations {
			escalated := true
			filterOpts.Escalated = &escalated
		}
		conversations, err := f.filters.Collect(ctx, filterOpts)
		if err != nil {
			return nil, err
		}

		rows := make([]map[string]interface{}, 0, len(conversations))
		for _, c := range conversations {
			row := map[string]interface{}{
				"sourceType":   exportType,
				"id":           c.ID,
				"timestamp":    c.StartedAt.Format(time.RFC3339),
				"language":     c.Language,
				"outcome":      c.Outcome,
				"messageCount": c.MessageCount,
			}
			if c.AvgConfidence != nil {
				row["avgConfidence"] = *c.AvgConfidence
			}
			if c.EscalationReason != nil {
				row["escalationReason"] = *c.EscalationReason
			}
			if c.UserName != nil {
				row["userName"] = *c.UserName
			}
			if c.ZipCode != nil {
				row["zipCode"] = *c.ZipCode
			}
			rows = append(rows, row)
		}
		return rows, nil

	case TypeMessages:
		start, end := rangeOf(opts.Filters)
		messages, err := f.store.GetMessagesByDateRange(ctx, start, end)
		if err != nil {
			return nil, err
		}

		rows := make([]map[string]interface{}, 0, len(messages))
		for _, m := range messages {
			row := map[string]interface{}{
				"sourceType": exportType,
				"id":         m.ConversationID,
				"position":   m.Position,
				"timestamp":  m.Timestamp.Format(time.RFC3339),
				"language":   m.Language,
				"role":       m.Role,
				"content":    m.Content,
			}
			if m.Confidence != nil {
				row["confidence"] = *m.Confidence
			}
			rows = append(rows, row)
		}
		return rows, nil

	case TypeQuestions:
		start, end := rangeOf(opts.Filters)
		questions, err := f.store.GetQuestionsByDateRange(ctx, start, end)
		if err != nil {
			return nil, err
		}

		rows := make([]map[string]interface{}, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, map[string]interface{}{
				"sourceType":      exportType,
				"id":              q.Fingerprint,
				"timestamp":       q.LastAskedAt.Format(time.RFC3339),
				"language":        q.Language,
				"content":         q.OriginalText,
				"category":        q.Category,
				"count":           q.Count,
				"answeredCount":   q.AnsweredCount,
				"unansweredCount": q.UnansweredCount,
				"escalationCount": q.EscalationCount,
				"avgConfidence":   q.AvgConfidence,
			})
		}
		return rows, nil
	}

	return nil, fmt.Errorf("unsupported export type %q", exportType)
}

func (f *Formatter) format(exportID string, rows []map[string]interface{}, opts Options) ([]byte, error) {
	switch opts.Format {
	case FormatJSON:
		return formatJSON(exportID, rows, opts)
	case FormatCSV:
		return formatCSV(rows, opts)
	case FormatXLSX:
		return formatXLSX(rows, opts)
	}
	return nil, fmt.Errorf("unsupported export format %q", opts.Format)
}

func formatJSON(exportID string, rows []map[string]interface{}, opts Options) ([]byte, error) {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	doc := envelope{
		ExportInfo: exportInfo{
			ID:          exportID,
			Timestamp:   time.Now(),
			Filters:     opts.Filters,
			RecordCount: len(rows),
		},
		Data: rows,
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return payload, nil
}

// formatCSV writes delimited text; encoding/csv supplies RFC 4180 quoting for
// values containing the delimiter or quote character.
func formatCSV(rows []map[string]interface{}, opts Options) ([]byte, error) {
	columns := presentColumns(rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if opts.Delimiter != "" {
		w.Comma = rune(opts.Delimiter[0])
	}

	if opts.IncludeHeaders {
		if err := w.Write(columns); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = cellString(row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatXLSX(rows []map[string]interface{}, opts Options) ([]byte, error) {
	columns := presentColumns(rows)

	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	rowIndex := 1

	if opts.IncludeHeaders {
		header := make([]interface{}, len(columns))
		for i, col := range columns {
			header[i] = col
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIndex)
		if err := file.SetSheetRow(sheet, cell, &header); err != nil {
			return nil, fmt.Errorf("failed to write header row: %w", err)
		}
		rowIndex++
	}

	for _, row := range rows {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIndex)
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
		rowIndex++
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// presentColumns keeps canonical order, restricted to columns any row carries.
func presentColumns(rows []map[string]interface{}) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			present[col] = true
		}
	}

	var columns []string
	for _, col := range canonicalColumns {
		if present[col] {
			columns = append(columns, col)
		}
	}
	return columns
}

func cellString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

func rangeOf(opts *filter.Options) (time.Time, time.Time) {
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
