package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/api/dto"
	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/deployment"
)

// InfoHandler describes the service.
type InfoHandler struct {
	app       config.AppConfig
	identity  deployment.Identity
	startedAt time.Time
}

// NewInfoHandler constructs handler.
func NewInfoHandler(app config.AppConfig, identity deployment.Identity, startedAt time.Time) *InfoHandler {
	return &InfoHandler{app: app, identity: identity, startedAt: startedAt.UTC()}
}

// Root handles GET /.
func (h *InfoHandler) Root(c *fiber.Ctx) error {
	return c.JSON(dto.ServiceInfo{
		Message:           "Kubernetes Test Application",
		Service:           h.app.Name,
		Version:           h.app.Version,
		Environment:       h.app.Env,
		DeploymentVersion: string(h.identity.Color()),
		MetricsURL:        "/metrics",
	})
}

// Version handles GET /version.
func (h *InfoHandler) Version(c *fiber.Ctx) error {
	return c.JSON(dto.VersionInfo{
		Version:           h.app.Version,
		Environment:       h.app.Env,
		DeploymentVersion: string(h.identity.Color()),
		GoVersion:         runtime.Version(),
		StartedAt:         h.startedAt,
	})
}
