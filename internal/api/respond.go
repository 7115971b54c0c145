package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
)

// fail translates a service error into its HTTP shape. Internal details
// are logged, never returned to the client.
func fail(c *fiber.Ctx, log *zap.Logger, op string, err error) error {
	status := apperr.StatusCode(err)
	if status >= 500 {
		log.Error(op, zap.Error(err), zap.String("path", c.Path()))
	}
	return c.Status(status).JSON(fiber.Map{"error": apperr.ClientMessage(err)})
}
