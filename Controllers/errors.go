package Controllers

import (
	"errors"
	"log"

	"AviCRM/Models"

	"github.com/gofiber/fiber/v2"
)

// respondError maps domain errors to status codes. message is what the
// client sees for everything that is not a validation failure.
func respondError(ctx *fiber.Ctx, err error, message string) error {
	var validation *Models.ValidationError
	switch {
	case errors.As(err, &validation):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": validation.Fields,
		})
	case errors.Is(err, Models.ErrNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
	case errors.Is(err, Models.ErrInvalidTransition):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("%s %s: %v", ctx.Method(), ctx.Path(), err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
	}
}
