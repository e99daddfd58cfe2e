package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/api/dto"
	"github.com/spec-kit/k8s-test-service/internal/auth"
	"github.com/spec-kit/k8s-test-service/internal/service"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// AuthHandler exposes login and the protected probe endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(apperrors.KindInvalidPayload, "invalid payload", nil)
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError(apperrors.KindInvalidPayload, "username and password required", nil)
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if apperrors.ToDomainError(err).Kind == apperrors.KindInvalidCredentials {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}
		return err
	}

	return c.JSON(dto.LoginResponse{
		AccessToken: token.Encoded,
		TokenType:   "bearer",
		ExpiresIn:   int64(token.TTL().Seconds()),
		ExpiresAt:   token.ExpiresAt,
	})
}

// Protected handles GET /auth/protected; the auth middleware has already run.
func (h *AuthHandler) Protected(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthenticationError(apperrors.KindMissingToken, "authentication required")
	}
	return c.JSON(dto.ProtectedResponse{
		Subject:   principal.Subject,
		Message:   fmt.Sprintf("Hello %s! This is a protected endpoint.", principal.Subject),
		TokenID:   principal.TokenID,
		ExpiresAt: principal.ExpiresAt,
	})
}
