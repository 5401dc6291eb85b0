package contracts

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error kinds returned by the service. Callers match them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// errVersionConflict marks a conditional update that matched no row.
var errVersionConflict = errors.New("contract version changed")

var statusByKind = []struct {
	kind error
	code int
}{
	{ErrInvalidArgument, fiber.StatusBadRequest},
	{ErrNotFound, fiber.StatusNotFound},
	{ErrForbidden, fiber.StatusForbidden},
	{ErrConflict, fiber.StatusConflict},
}

// toFiberError maps service errors to HTTP errors. Internal errors never
// expose their cause.
func toFiberError(err error) *fiber.Error {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			msg := strings.TrimPrefix(err.Error(), m.kind.Error()+": ")
			return fiber.NewError(m.code, msg)
		}
	}
	return fiber.ErrInternalServerError
}
