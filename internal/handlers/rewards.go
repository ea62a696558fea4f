package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/catalog"
)

// GetRewardsHandler lists the catalog, optionally filtered by ?category=.
func (h *Handler) GetRewardsHandler(c *fiber.Ctx) error {
	category := catalog.Category(c.Query("category"))
	if category != "" && !category.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown category",
		})
	}

	return c.Status(fiber.StatusOK).JSON(catalog.ByCategory(category))
}

func (h *Handler) RedeemHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	entry, err := catalog.Get(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	record, err := h.Ledger.Redeem(ctx, userEmail(c), entry)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(record)
}

func (h *Handler) GetRedemptionsHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	redeemed, err := h.Ledger.Redemptions(ctx, userEmail(c))
	if err != nil {
		return errorResponse(c, err)
	}

	if len(redeemed) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(redeemed)
}
