package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/metrics"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/search"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req search.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse search request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	startTime := time.Now()
	resp, err := h.engine.Search(c.Context(), req)
	if err != nil {
		// Search degrades store failures internally; an error here means
		// the request itself was malformed.
		metrics.SearchDuration.WithLabelValues("error").Observe(time.Since(startTime).Seconds())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	metrics.SearchDuration.WithLabelValues("success").Observe(time.Since(startTime).Seconds())
	metrics.SearchResultsCount.Observe(float64(len(resp.Results)))

	return c.JSON(resp)
}
