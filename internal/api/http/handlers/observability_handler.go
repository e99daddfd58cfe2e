package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/api/dto"
	"github.com/spec-kit/k8s-test-service/internal/observability"
)

// Simulated downstream steps of the trace endpoint.
var traceSteps = []struct {
	name  string
	delay time.Duration
}{
	{"database_call", 50 * time.Millisecond},
	{"external_api_call", 20 * time.Millisecond},
}

// ObservabilityHandler emits logs and trace-shaped timings on demand.
type ObservabilityHandler struct {
	logger *zap.Logger
}

// NewObservabilityHandler constructs handler.
func NewObservabilityHandler(logger *zap.Logger) *ObservabilityHandler {
	return &ObservabilityHandler{logger: logger.Named("observability")}
}

// Logs handles GET /observability/logs by writing one line per level.
func (h *ObservabilityHandler) Logs(c *fiber.Ctx) error {
	requestID, _ := c.Locals(observability.RequestIDKey).(string)
	field := zap.String("request_id", requestID)

	h.logger.Info("Info log generated via API", field)
	h.logger.Warn("Warning log generated via API", field)
	h.logger.Error("Error log generated via API", field)

	return c.JSON(fiber.Map{
		"message":    "Test logs generated",
		"levels":     []string{"info", "warning", "error"},
		"request_id": requestID,
	})
}

// Trace handles GET /observability/trace.
func (h *ObservabilityHandler) Trace(c *fiber.Ctx) error {
	ctx := c.UserContext()
	traceID := uuid.NewString()
	start := time.Now()

	spans := make([]dto.TraceSpan, 0, len(traceSteps)+1)
	for _, step := range traceSteps {
		stepStart := time.Now()
		if err := sleep(ctx, step.delay); err != nil {
			return err
		}
		spans = append(spans, dto.TraceSpan{Name: step.name, SpanID: uuid.NewString(), DurationMs: sinceMs(stepStart)})
	}
	spans = append([]dto.TraceSpan{{Name: "request", SpanID: uuid.NewString(), DurationMs: sinceMs(start)}}, spans...)

	h.logger.Info("trace completed", zap.String("trace_id", traceID), zap.Int("spans", len(spans)))
	return c.JSON(dto.TraceResponse{
		Message:   "Trace endpoint completed",
		TraceID:   traceID,
		SpanCount: len(spans),
		Spans:     spans,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
