package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/accounts"
	"github.com/sol1corejz/ecoglass/internal/catalog"
	"github.com/sol1corejz/ecoglass/internal/credentials"
	"github.com/sol1corejz/ecoglass/internal/drafts"
	"github.com/sol1corejz/ecoglass/internal/ledger"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/middleware"
	"go.uber.org/zap"
)

const requestTimeout = time.Second * 10

// Queue accepts drafts for background validation.
type Queue interface {
	Enqueue(ctx context.Context, id string) error
}

type Handler struct {
	Accounts    *accounts.Service
	Ledger      *ledger.Ledger
	Drafts      *drafts.Store
	Queue       Queue
	Credentials *credentials.Store
}

// Routes mounts the API on app.
func (h *Handler) Routes(app *fiber.App) {
	app.Post("/api/user/register", h.RegisterHandler)
	app.Post("/api/user/login", h.LoginHandler)
	app.Get("/api/rewards", h.GetRewardsHandler)

	authRoutes := app.Group("/api/user", middleware.AuthMiddleware)
	authRoutes.Post("/logout", h.LogoutHandler)
	authRoutes.Get("/balance", h.GetUserBalanceHandler)
	authRoutes.Post("/uploads", h.CreateUploadHandler)
	authRoutes.Get("/uploads", h.GetUploadsHandler)
	authRoutes.Delete("/uploads/:id", h.DeleteUploadHandler)
	authRoutes.Get("/drafts/:id", h.GetDraftHandler)
	authRoutes.Delete("/drafts/:id", h.DiscardDraftHandler)
	authRoutes.Post("/drafts/:id/confirm", h.ConfirmUploadHandler)
	authRoutes.Post("/rewards/:id/redeem", h.RedeemHandler)
	authRoutes.Get("/redemptions", h.GetRedemptionsHandler)

	settings := app.Group("/api/settings", middleware.AuthMiddleware)
	settings.Get("/api-key", h.GetAPIKeyHandler)
	settings.Put("/api-key", h.SetAPIKeyHandler)
	settings.Delete("/api-key", h.ClearAPIKeyHandler)
}

func userEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("email").(string)
	return email
}

// errorResponse maps domain errors onto status codes.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status, message = fiber.StatusRequestTimeout, "Request timed out"
	case errors.Is(err, accounts.ErrNotFound):
		status, message = fiber.StatusNotFound, "Account not found"
	case errors.Is(err, ledger.ErrNotFound):
		status, message = fiber.StatusNotFound, "Upload not found"
	case errors.Is(err, drafts.ErrNotFound):
		status, message = fiber.StatusNotFound, "Draft not found"
	case errors.Is(err, catalog.ErrUnknownReward):
		status, message = fiber.StatusNotFound, "Reward not found"
	case errors.Is(err, ledger.ErrInsufficientPoints):
		status, message = fiber.StatusPaymentRequired, "Insufficient points"
	case errors.Is(err, ledger.ErrValidationPending), errors.Is(err, drafts.ErrNotReady):
		status, message = fiber.StatusConflict, "Image validation has not finished"
	case errors.Is(err, drafts.ErrTooManyDrafts):
		status, message = fiber.StatusTooManyRequests, "Too many uploads awaiting confirmation"
	case errors.Is(err, drafts.ErrUploadInProgress):
		status, message = fiber.StatusConflict, "Upload already in progress"
	case errors.Is(err, ledger.ErrRejectedByValidator):
		status, message = fiber.StatusUnprocessableEntity, "The image does not show recyclable glass"
	}

	if status == fiber.StatusInternalServerError {
		logger.Log.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
