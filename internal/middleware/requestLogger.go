package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request.
func RequestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	logger.Log.Info("Request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
		zap.Int("size", len(c.Response().Body())),
	)
	return err
}
