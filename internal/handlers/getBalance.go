package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type BalanceResponse struct {
	Points          int `json:"points"`
	Progress        int `json:"progress"`
	Level           int `json:"level"`
	TotalCompleted  int `json:"totalCompleted"`
	NextReward      int `json:"nextReward"`
	PhotosRemaining int `json:"photosRemaining"`
}

func (h *Handler) GetUserBalanceHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	email := userEmail(c)

	points, err := h.Ledger.Balance(ctx, email)
	if err != nil {
		return errorResponse(c, err)
	}
	progress, err := h.Ledger.Progress(ctx, email)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(BalanceResponse{
		Points:          points,
		Progress:        progress.Progress,
		Level:           progress.Level,
		TotalCompleted:  progress.TotalCompleted,
		NextReward:      progress.NextReward(),
		PhotosRemaining: progress.PhotosRemaining(),
	})
}
