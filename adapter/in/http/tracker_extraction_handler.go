package http

import (
	"context"

	"tracker_server/core/agent/llm"
	"tracker_server/core/service/extraction"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type ExtractionMonitor interface {
	Stats() extraction.ExtractorStats
	ClearCache(ctx context.Context)
}

type CostReporter interface {
	CostStats() llm.CostStats
}

// ExtractionHandler exposes extractor and inference spend statistics.
type ExtractionHandler struct {
	extractor ExtractionMonitor
	costs     CostReporter
}

// NewExtractionHandler creates the handler. costs may be nil when no model is configured.
func NewExtractionHandler(extractor ExtractionMonitor, costs CostReporter) *ExtractionHandler {
	return &ExtractionHandler{extractor: extractor, costs: costs}
}

func (h *ExtractionHandler) Register(router fiber.Router) {
	ext := router.Group("/extraction")
	ext.Get("/stats", h.GetStats)
	ext.Delete("/cache", h.ClearCache)
}

// ExtractionStatsResponse is the body of GET /extraction/stats.
type ExtractionStatsResponse struct {
	Extraction extraction.ExtractorStats `json:"extraction"`
	Cost       *llm.CostStats            `json:"cost,omitempty"`
}

func (h *ExtractionHandler) GetStats(c *fiber.Ctx) error {
	resp := ExtractionStatsResponse{Extraction: h.extractor.Stats()}
	if h.costs != nil {
		cost := h.costs.CostStats()
		resp.Cost = &cost
	}
	return response.OK(c, resp)
}

func (h *ExtractionHandler) ClearCache(c *fiber.Ctx) error {
	before := h.extractor.Stats().Cache.Size
	h.extractor.ClearCache(c.UserContext())
	logger.Info("[ExtractionHandler.ClearCache] cleared %d cached extraction results", before)
	return response.OK(c, fiber.Map{"cleared": before})
}
