package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestIDKey is the fiber Locals key holding the request id.
const RequestIDKey = "requestid"

var probePaths = map[string]struct{}{
	"/ping":         {},
	"/health":       {},
	"/health/live":  {},
	"/health/ready": {},
	"/metrics":      {},
}

// RequestLogger records http metrics and logs one line per request. It must wrap the error
// middleware so the final status code is visible.
func RequestLogger(logger *zap.Logger, metrics *Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		_ = metrics.AddGauge(MetricActiveConnections, nil, 1)
		defer func() { _ = metrics.AddGauge(MetricActiveConnections, nil, -1) }()

		err := c.Next()

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		endpoint := routeLabel(c, status)
		method := c.Method()

		_ = metrics.Increment(MetricHTTPRequests, Labels{
			"method":      method,
			"endpoint":    endpoint,
			"status_code": strconv.Itoa(status),
		})
		_ = metrics.Observe(MetricHTTPDuration, Labels{"method": method, "endpoint": endpoint}, elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("ip", c.IP()),
		}
		if id, ok := c.Locals(RequestIDKey).(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Warn("request completed", fields...)
		case isProbe(c.Path()):
			logger.Debug("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
		return err
	}
}

// routeLabel keeps endpoint cardinality bounded: unmatched paths collapse into one label.
func routeLabel(c *fiber.Ctx, status int) string {
	path := c.Route().Path
	if status == fiber.StatusNotFound && path == "/" && c.Path() != "/" {
		return "unmatched"
	}
	return path
}

func isProbe(path string) bool {
	_, ok := probePaths[strings.TrimSuffix(path, "/")]
	return ok
}
