package handlers

import (
	"errors"

	statusController "statushub/internal/controllers/status"
	"statushub/internal/services"
	"statushub/internal/status"

	"github.com/gofiber/fiber/v2"
)

// respondError maps controller errors to status codes. Unexpected errors
// are reported with the generic message only.
func respondError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, statusController.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, statusController.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrHistoryDisabled), errors.Is(err, status.ErrStopped):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
	}
}
