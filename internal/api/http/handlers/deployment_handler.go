package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/api/dto"
	"github.com/spec-kit/k8s-test-service/internal/deployment"
)

// DeploymentHandler reports the blue/green identity of this process.
type DeploymentHandler struct {
	identity deployment.Identity
}

// NewDeploymentHandler constructs handler.
func NewDeploymentHandler(identity deployment.Identity) *DeploymentHandler {
	return &DeploymentHandler{identity: identity}
}

// Version handles GET /deployment/version. The body is identical for the process lifetime.
func (h *DeploymentHandler) Version(c *fiber.Ctx) error {
	return c.JSON(h.identity.Current())
}

// Blue handles GET /deployment/blue.
func (h *DeploymentHandler) Blue(c *fiber.Ctx) error {
	return c.JSON(h.descriptor(deployment.ColorBlue))
}

// Green handles GET /deployment/green.
func (h *DeploymentHandler) Green(c *fiber.Ctx) error {
	return c.JSON(h.descriptor(deployment.ColorGreen))
}

func (h *DeploymentHandler) descriptor(color deployment.Color) dto.DeploymentDescriptor {
	return dto.DeploymentDescriptor{
		Deployment: string(color),
		Message:    fmt.Sprintf("This is the %s deployment", strings.ToUpper(string(color))),
		Version:    h.identity.Version(),
		Color:      color.Hex(),
		Active:     h.identity.Color() == color,
	}
}
