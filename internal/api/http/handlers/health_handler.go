package handlers

import (
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/api/dto"
	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/deployment"
	"github.com/spec-kit/k8s-test-service/internal/health"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	aggregator *health.Aggregator
	app        config.AppConfig
	identity   deployment.Identity
	startedAt  time.Time
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(aggregator *health.Aggregator, app config.AppConfig, identity deployment.Identity, startedAt time.Time) *HealthHandler {
	return &HealthHandler{aggregator: aggregator, app: app, identity: identity, startedAt: startedAt}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(h.aggregator.Liveness())
}

// Ping handles GET /ping.
func (h *HealthHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "pong"})
}

// Ready reports readiness; failures render as a not_ready error naming each failing check.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	report, err := h.aggregator.Readiness(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// Health handles GET /health: the readiness report plus a description of the process.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	report, err := h.aggregator.Readiness(c.UserContext())
	status := fiber.StatusOK
	if err != nil {
		status = fiber.StatusServiceUnavailable
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	hostname, _ := os.Hostname()

	return c.Status(status).JSON(dto.HealthResponse{
		Report:            report,
		Version:           h.app.Version,
		Environment:       h.app.Env,
		DeploymentVersion: string(h.identity.Color()),
		SystemInfo: dto.SystemInfo{
			Hostname:      hostname,
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			GoVersion:     runtime.Version(),
			CPUCount:      runtime.NumCPU(),
			Goroutines:    runtime.NumGoroutine(),
			MemoryAlloc:   mem.Alloc,
			MemorySys:     mem.Sys,
			UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		},
	})
}
