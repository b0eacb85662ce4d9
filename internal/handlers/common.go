package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tukangin-app/tukangin_be/internal/booking"
	"github.com/tukangin-app/tukangin_be/internal/chat"
)

// currentUserID reads the authenticated user id placed by AttachJWTLocals.
func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Locals("userId")
	if raw == nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return id, nil
}

func currentRole(c *fiber.Ctx) string {
	if s, ok := c.Locals("role").(string); ok {
		return s
	}
	return ""
}

func parseIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// respondError maps domain errors onto HTTP statuses while keeping the
// response envelope uniform.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation  *booking.ValidationError
		authz       *booking.AuthorizationError
		conflict    *booking.ConflictError
		duplicate   *booking.DuplicateApplicationError
		transition  *booking.TransitionError
		chatVal     *chat.ValidationError
		chatMember  *chat.NotParticipantError
		chatLimited *chat.RateLimitError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &chatVal):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &authz), errors.As(err, &chatMember):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.As(err, &duplicate):
		return fail(c, fiber.StatusConflict, "You already applied to this job")
	case errors.As(err, &conflict), errors.As(err, &transition):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &chatLimited):
		return fail(c, fiber.StatusTooManyRequests, "You are sending messages too fast")
	case errors.Is(err, booking.ErrRequestNotFound),
		errors.Is(err, booking.ErrOfferNotFound),
		errors.Is(err, chat.ErrConversationNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	default:
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
