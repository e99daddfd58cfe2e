package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/api/http/handlers"
	"github.com/spec-kit/k8s-test-service/internal/auth"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Info           *handlers.InfoHandler
	Auth           *handlers.AuthHandler
	Deployment     *handlers.DeploymentHandler
	LoadTest       *handlers.LoadTestHandler
	Errors         *handlers.ErrorsHandler
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Observability  *handlers.ObservabilityHandler
	AuthMiddleware *auth.AuthMiddleware

	// RequireWorkloadAuth puts the workload generators behind the bearer middleware.
	RequireWorkloadAuth bool
}

// NewApp builds the fiber application with server level timeouts.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           90 * time.Second,
	})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Info.Root)
	app.Get("/version", cfg.Info.Version)

	app.Get("/ping", cfg.Health.Ping)
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/metrics", cfg.Metrics.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/protected", cfg.AuthMiddleware.Handle, cfg.Auth.Protected)

	deploymentGroup := app.Group("/deployment")
	deploymentGroup.Get("/version", cfg.Deployment.Version)
	deploymentGroup.Get("/blue", cfg.Deployment.Blue)
	deploymentGroup.Get("/green", cfg.Deployment.Green)

	workload := func(h fiber.Handler) []fiber.Handler {
		if cfg.RequireWorkloadAuth {
			return []fiber.Handler{cfg.AuthMiddleware.Handle, h}
		}
		return []fiber.Handler{h}
	}
	loadTest := app.Group("/load-test")
	loadTest.Get("/cpu", workload(cfg.LoadTest.CPU)...)
	loadTest.Get("/memory", workload(cfg.LoadTest.Memory)...)
	loadTest.Get("/async", workload(cfg.LoadTest.Async)...)
	loadTest.Get("/info", cfg.LoadTest.Info)
	loadTest.Get("/stats", cfg.LoadTest.Stats)

	app.Get("/error/:kind", cfg.Errors.Trigger)

	obs := app.Group("/observability")
	obs.Get("/logs", cfg.Observability.Logs)
	obs.Get("/trace", cfg.Observability.Trace)

	app.Use(func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("route", map[string]any{"method": c.Method(), "path": c.Path()})
	})
}
