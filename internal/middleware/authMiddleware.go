package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/ecoglass/internal/auth"
	"github.com/sol1corejz/ecoglass/internal/tokenstorage"
)

// TokenFromRequest returns the jwt cookie, or the bearer token when the
// cookie is absent.
func TokenFromRequest(c *fiber.Ctx) string {
	if tokenString := c.Cookies("jwt"); tokenString != "" {
		return tokenString
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func AuthMiddleware(c *fiber.Ctx) error {
	tokenString := TokenFromRequest(c)
	if tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	email, err := auth.GetEmail(tokenString)
	if err != nil || !tokenstorage.CheckToken(tokenString) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	c.Locals("email", email)
	c.Locals("token", tokenString)

	return c.Next()
}
