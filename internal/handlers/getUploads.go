package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetUploadsHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	uploads, err := h.Ledger.Uploads(ctx, userEmail(c))
	if err != nil {
		return errorResponse(c, err)
	}

	if len(uploads) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(uploads)
}

func (h *Handler) DeleteUploadHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	points, err := h.Ledger.DeleteUpload(ctx, userEmail(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"points": points,
	})
}
