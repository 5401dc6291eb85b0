package validation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// Errors maps a JSON field name to its messages.
type Errors map[string][]string

// Add appends msg under field.
func (e Errors) Add(field, msg string) { e[field] = append(e[field], msg) }

// Respond writes a 400 with the per-field error shape.
func Respond(c *fiber.Ctx, errs Errors) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ValidationErrorResponse{
		Success: false,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Field responds with a single message for one field.
func Field(c *fiber.Ctx, field, msg string) error {
	return Respond(c, Errors{field: {msg}})
}
