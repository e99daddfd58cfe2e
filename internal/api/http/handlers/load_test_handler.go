package handlers

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/api/dto"
	"github.com/spec-kit/k8s-test-service/internal/deployment"
	"github.com/spec-kit/k8s-test-service/internal/domain"
	"github.com/spec-kit/k8s-test-service/internal/workload"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// LoadTestHandler exposes the synthetic workload generators.
type LoadTestHandler struct {
	generator *workload.Generator
	identity  deployment.Identity
}

// NewLoadTestHandler constructs handler.
func NewLoadTestHandler(generator *workload.Generator, identity deployment.Identity) *LoadTestHandler {
	return &LoadTestHandler{generator: generator, identity: identity}
}

// CPU handles GET /load-test/cpu?intensity=<ms>.
func (h *LoadTestHandler) CPU(c *fiber.Ctx) error {
	return h.run(c, domain.WorkloadCPU)
}

// Memory handles GET /load-test/memory?intensity=<MiB>.
func (h *LoadTestHandler) Memory(c *fiber.Ctx) error {
	return h.run(c, domain.WorkloadMemory)
}

// Async handles GET /load-test/async?intensity=<ms>.
func (h *LoadTestHandler) Async(c *fiber.Ctx) error {
	return h.run(c, domain.WorkloadAsync)
}

func (h *LoadTestHandler) run(c *fiber.Ctx, kind domain.WorkloadKind) error {
	intensity, err := parseIntensity(c.Query("intensity"))
	if err != nil {
		return err
	}
	res, err := h.generator.Run(c.UserContext(), domain.WorkloadRequest{Kind: kind, Intensity: intensity})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewWorkloadResponse(res, h.identity.InstanceID()))
}

// parseIntensity treats a missing value as "use the default".
func parseIntensity(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(apperrors.KindInvalidIntensity,
			"intensity must be an integer", map[string]any{"intensity": raw})
	}
	return n, nil
}

// Info handles GET /load-test/info.
func (h *LoadTestHandler) Info(c *fiber.Ctx) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	hostname, _ := os.Hostname()
	return c.JSON(dto.LoadTestInfo{
		InstanceID:    h.identity.InstanceID(),
		Hostname:      hostname,
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     mem.HeapAlloc,
		HeapSys:       mem.HeapSys,
		InFlightBytes: h.generator.InFlightBytes(),
		Pool:          h.generator.PoolStats(),
		Limits:        dto.NewWorkloadLimits(h.generator.Limits()),
		Timestamp:     time.Now().UTC(),
	})
}

// Stats handles GET /load-test/stats.
func (h *LoadTestHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"instance_id": h.identity.InstanceID(),
		"latency":     h.generator.Stats(),
	})
}
