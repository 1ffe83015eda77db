package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mdmstudio/sns-backend/internal/services"
)

// fail maps a service error onto the right HTTP status and the standard
// error envelope.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}
