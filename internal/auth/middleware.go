package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/k8s-test-service/internal/domain"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

const principalKey = "auth_principal"

// Authorizer turns an Authorization header value into a principal.
type Authorizer interface {
	Authorize(ctx context.Context, header string) (domain.Principal, error)
}

// AuthMiddleware validates bearer tokens for protected routes.
type AuthMiddleware struct {
	authorizer Authorizer
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authorizer Authorizer) *AuthMiddleware {
	return &AuthMiddleware{authorizer: authorizer}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.authorizer.Authorize(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// ExtractBearer returns the token from an Authorization header value.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperrors.NewAuthenticationError(apperrors.KindMissingToken, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewAuthenticationError(apperrors.KindInvalidToken, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok
}
