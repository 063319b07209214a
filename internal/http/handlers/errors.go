package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/worklance/backend/internal/models"
)

// statusFromErr maps domain errors to HTTP statuses. Unknown errors are the
// caller's problem (usually 400 for state machine rejections).
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, models.ErrAccessDenied):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrEscrowNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrMilestoneAlreadyApproved),
		errors.Is(err, models.ErrMilestoneAlreadyClaimed),
		errors.Is(err, models.ErrMilestoneNotApproved),
		errors.Is(err, models.ErrCannotCancelAfterApproval):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrLedgerUnreachable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInvalidInput):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadRequest
	}
}
