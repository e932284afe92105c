package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/gaps"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/metrics"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

const defaultAnalysisWindow = 30 * 24 * time.Hour

type GapsHandler struct {
	analyzer *gaps.Analyzer
}

func NewGapsHandler(analyzer *gaps.Analyzer) *GapsHandler {
	return &GapsHandler{
		analyzer: analyzer,
	}
}

func (h *GapsHandler) HandleGaps(c *fiber.Ctx) error {
	start, end, err := analysisRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	startTime := time.Now()
	result, err := h.analyzer.Analyze(c.Context(), start, end)
	if err != nil {
		logger.Error("Failed to analyze knowledge gaps", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to analyze knowledge gaps",
		})
	}

	metrics.GapAnalysisDuration.Observe(time.Since(startTime).Seconds())
	metrics.KnowledgeGaps.Set(float64(len(result)))

	var unanswered int
	for _, gap := range result {
		unanswered += gap.Frequency
	}
	metrics.UnansweredQuestions.Set(float64(unanswered))

	return c.JSON(fiber.Map{
		"gaps":      result,
		"startDate": start,
		"endDate":   end,
	})
}

func (h *GapsHandler) HandleOpportunities(c *fiber.Ctx) error {
	start, end, err := analysisRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must not be negative",
		})
	}

	result, err := h.analyzer.Opportunities(c.Context(), start, end, limit)
	if err != nil {
		logger.Error("Failed to rank improvement opportunities", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rank improvement opportunities",
		})
	}

	return c.JSON(fiber.Map{
		"opportunities": result,
		"startDate":     start,
		"endDate":       end,
	})
}

func (h *GapsHandler) HandleTrends(c *fiber.Ctx) error {
	start, end, err := analysisRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	report, err := h.analyzer.Trends(c.Context(), start, end, c.Query("granularity", gaps.TrendDaily))
	if err != nil {
		logger.Error("Failed to compute trends", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}

// analysisRange reads start/end query parameters as RFC 3339 timestamps,
// defaulting to the trailing 30 days.
func analysisRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.Add(-defaultAnalysisWindow)

	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "start must be RFC 3339")
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "end must be RFC 3339")
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "end precedes start")
	}

	return start, end, nil
}
