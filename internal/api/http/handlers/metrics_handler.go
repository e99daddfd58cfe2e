package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// MetricsHandler exposes the registry to scrapers.
type MetricsHandler struct {
	registry *observability.Registry
	scrape   fiber.Handler
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(registry *observability.Registry) *MetricsHandler {
	return &MetricsHandler{registry: registry, scrape: adaptor.HTTPHandler(registry.Handler())}
}

// Metrics handles GET /metrics. ?format=json returns the flattened snapshot instead of the
// text exposition format.
func (h *MetricsHandler) Metrics(c *fiber.Ctx) error {
	if c.Query("format") != "json" {
		return h.scrape(c)
	}
	samples, err := h.registry.Snapshot()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"samples": samples})
}
