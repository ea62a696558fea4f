package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/credentials"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"go.uber.org/zap"
)

type APIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type APIKeyResponse struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
}

func (h *Handler) GetAPIKeyHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	key, ok := h.Credentials.Get(ctx)
	return c.Status(fiber.StatusOK).JSON(APIKeyResponse{
		Configured: ok,
		Masked:     credentials.Mask(key),
	})
}

// SetAPIKeyHandler stores the key; a blank key switches to simulation.
func (h *Handler) SetAPIKeyHandler(c *fiber.Ctx) error {
	var request APIKeyRequest
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.Credentials.Set(ctx, request.APIKey); err != nil {
		return errorResponse(c, err)
	}

	key, ok := h.Credentials.Get(ctx)
	logger.Log.Info("API key updated", zap.Bool("configured", ok))

	return c.Status(fiber.StatusOK).JSON(APIKeyResponse{
		Configured: ok,
		Masked:     credentials.Mask(key),
	})
}

func (h *Handler) ClearAPIKeyHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := h.Credentials.Clear(ctx); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
