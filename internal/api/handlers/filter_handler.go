package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/filter"
	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/metrics"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

type FilterHandler struct {
	engine *filter.Engine
}

func NewFilterHandler(engine *filter.Engine) *FilterHandler {
	return &FilterHandler{
		engine: engine,
	}
}

func (h *FilterHandler) HandleFilter(c *fiber.Ctx) error {
	var opts filter.Options
	if err := c.BodyParser(&opts); err != nil {
		logger.Error("Failed to parse filter request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := filter.Validate(opts); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	startTime := time.Now()
	result, err := h.engine.Filter(c.Context(), opts)
	if err != nil {
		metrics.FilterDuration.WithLabelValues("error").Observe(time.Since(startTime).Seconds())
		logger.Error("Failed to apply filter", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to apply filter",
		})
	}
	metrics.FilterDuration.WithLabelValues("success").Observe(time.Since(startTime).Seconds())

	return c.JSON(result)
}
