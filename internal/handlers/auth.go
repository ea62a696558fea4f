package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/accounts"
	"github.com/sol1corejz/ecoglass/internal/auth"
	"github.com/sol1corejz/ecoglass/internal/logger"
	"github.com/sol1corejz/ecoglass/internal/models"
	"github.com/sol1corejz/ecoglass/internal/tokenstorage"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterHandler(c *fiber.Ctx) error {
	var request RegisterRequest
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	account, err := h.Accounts.Register(ctx, request.Name, request.Email, request.Password)
	switch {
	case errors.Is(err, accounts.ErrAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "This email is already registered",
		})
	case isFormError(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return errorResponse(c, err)
	}

	if err := startSession(c, account); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(account)
}

func (h *Handler) LoginHandler(c *fiber.Ctx) error {
	var request LoginRequest
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	account, err := h.Accounts.Authenticate(ctx, request.Email, request.Password)
	switch {
	case errors.Is(err, accounts.ErrWrongPassword):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Wrong password",
		})
	case errors.Is(err, accounts.ErrNotFound):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "No account with this email",
		})
	case isFormError(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return errorResponse(c, err)
	}

	if err := startSession(c, account); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(account)
}

func (h *Handler) LogoutHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if token, ok := c.Locals("token").(string); ok {
		tokenstorage.RevokeToken(token)
	}
	if err := h.Accounts.Logout(ctx, userEmail(c)); err != nil {
		logger.Log.Error("Error clearing current user", zap.Error(err))
	}

	c.ClearCookie("jwt")
	return c.SendStatus(fiber.StatusNoContent)
}

func startSession(c *fiber.Ctx, account models.Account) error {
	token, err := auth.GenerateToken(account.Email)
	if err != nil {
		logger.Log.Error("Error generating token: ", zap.Error(err))
		return err
	}

	tokenstorage.AddToken(token)

	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(auth.TokenExp),
		HTTPOnly: true,
	})

	c.Set("Authorization", "Bearer "+token)
	return nil
}

func isFormError(err error) bool {
	return errors.Is(err, accounts.ErrMissingFields) ||
		errors.Is(err, accounts.ErrInvalidName) ||
		errors.Is(err, accounts.ErrInvalidEmail) ||
		errors.Is(err, accounts.ErrInvalidPassword)
}
