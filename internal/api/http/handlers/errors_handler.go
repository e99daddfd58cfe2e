package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/faults"
)

// ErrorsHandler serves deliberate failures.
type ErrorsHandler struct {
	simulator *faults.Simulator
}

// NewErrorsHandler constructs handler.
func NewErrorsHandler(simulator *faults.Simulator) *ErrorsHandler {
	return &ErrorsHandler{simulator: simulator}
}

// Trigger handles GET /error/:kind. It never succeeds.
func (h *ErrorsHandler) Trigger(c *fiber.Ctx) error {
	return h.simulator.Trigger(c.UserContext(), c.Params("kind"))
}
