package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// MiddlewareConfig configures the global middleware chain.
type MiddlewareConfig struct {
	Logger  *zap.Logger
	Metrics *observability.Registry
	// Timeout bounds each request's context; zero disables it.
	Timeout time.Duration
	// BaseContext is the parent of every request context. Cancelling it aborts in-flight work.
	BaseContext context.Context
}

// RegisterMiddlewares attaches global middlewares. Outermost first: request id, CORS, request
// logging, error rendering, request deadline.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}

	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: observability.RequestIDKey,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(observability.RequestLogger(logger, cfg.Metrics))
	app.Use(errorHandlingMiddleware(logger))
	app.Use(requestContextMiddleware(base, cfg.Timeout))
}

func requestContextMiddleware(base context.Context, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(base, timeout)
		} else {
			ctx, cancel = context.WithCancel(base)
		}
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				response := fiber.Map{
					"kind":    domainErr.Kind,
					"message": domainErr.Message,
				}
				if len(domainErr.Details) > 0 {
					response["details"] = domainErr.Details
				}
				switch {
				case domainErr.Details["simulated"] == true:
					logger.Info("simulated failure", zap.String("kind", domainErr.Kind), zap.Int("status", domainErr.HTTPStatus))
				case domainErr.HTTPStatus >= fiber.StatusInternalServerError:
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}
