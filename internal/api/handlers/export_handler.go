package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/export"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/metrics"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/storage/sqlite"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

var exportContentTypes = map[string]string{
	export.FormatJSON: "application/json",
	export.FormatCSV:  "text/csv",
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type ExportHandler struct {
	formatter *export.Formatter
	store     *sqlite.Client
}

func NewExportHandler(formatter *export.Formatter, store *sqlite.Client) *ExportHandler {
	return &ExportHandler{
		formatter: formatter,
		store:     store,
	}
}

func (h *ExportHandler) HandleCreateExport(c *fiber.Ctx) error {
	var opts export.Options
	if err := c.BodyParser(&opts); err != nil {
		logger.Error("Failed to parse export request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.formatter.Export(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	metrics.ExportsTotal.WithLabelValues(result.Format, result.Status).Inc()
	if result.Status == export.StatusCompleted {
		metrics.ExportRecords.Observe(float64(result.RecordCount))
	}

	return c.JSON(result)
}

func (h *ExportHandler) HandleDownload(c *fiber.Ctx) error {
	exportID := c.Params("id")
	if exportID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Export id is required",
		})
	}

	filename, data, format, err := h.store.GetExport(c.Context(), exportID)
	if err != nil {
		logger.Warn("Export download failed",
			zap.String("export_id", exportID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Export not found or expired",
		})
	}

	contentType := exportContentTypes[format]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}
