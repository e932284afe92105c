package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/metrics"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/query"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

type QueryHandler struct {
	engine *query.Engine
}

func NewQueryHandler(engine *query.Engine) *QueryHandler {
	return &QueryHandler{
		engine: engine,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req query.Query
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse aggregation query", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	startTime := time.Now()
	result, err := h.engine.Execute(c.Context(), req)
	if err != nil {
		metrics.QueryDuration.WithLabelValues("error").Observe(time.Since(startTime).Seconds())
		logger.Error("Failed to execute aggregation query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to execute query",
		})
	}

	metrics.QueryDuration.WithLabelValues("success").Observe(time.Since(startTime).Seconds())
	metrics.QueryTotal.WithLabelValues(result.Metadata.CacheStatus).Inc()
	if result.Metadata.CacheStatus == "hit" {
		metrics.CacheHits.WithLabelValues("query").Inc()
	} else if result.Metadata.CacheStatus == "miss" {
		metrics.CacheMisses.WithLabelValues("query").Inc()
	}

	return c.JSON(result)
}
