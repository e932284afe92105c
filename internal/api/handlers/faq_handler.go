package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/internal/faq"
	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

type FAQHandler struct {
	ranker *faq.Ranker
}

func NewFAQHandler(ranker *faq.Ranker) *FAQHandler {
	return &FAQHandler{
		ranker: ranker,
	}
}

func (h *FAQHandler) HandleFAQ(c *fiber.Ctx) error {
	opts := faq.Options{
		Category: c.Query("category"),
		Language: c.Query("language"),
		Query:    c.Query("query"),
		Limit:    c.QueryInt("limit", 0),
	}

	entries, err := h.ranker.Rank(c.Context(), opts)
	if err != nil {
		logger.Error("Failed to rank FAQ entries", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
	})
}
