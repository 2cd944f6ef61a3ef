package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs each request with latency and records request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if requestID, ok := c.Locals(RequestIDKey).(string); ok && requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}
		logger.Info("request", fields...)
		metrics.RecordRequest(c.Path(), c.Method(), status, duration)
		return err
	}
}

// RequestIDKey is the locals key under which the request id is stored.
const RequestIDKey = "request_id"
