package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const localsUserID = "userID"

// Middleware authenticates requests from the session cookie, falling back
// to a bearer Authorization header, and stashes the user id in Locals.
func Middleware(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(CookieName)
		if token == "" {
			if h := c.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if token == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated"})
		}
		userID, err := tokens.Verify(token)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(localsUserID, userID)
		return c.Next()
	}
}

// UserID reads the authenticated user id set by Middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}
