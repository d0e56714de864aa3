package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/orirot10/GIVEIT-sub000/internal/httpx"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/service"
	"github.com/orirot10/GIVEIT-sub000/internal/validation"
)

// PushEndpoints is the part of the user service that manages device tokens.
type PushEndpoints interface {
	RegisterPushEndpoint(ctx context.Context, userID uint, input service.PushEndpointInput) (*models.PushEndpoint, error)
	UnregisterPushEndpoint(ctx context.Context, userID uint, input service.PushEndpointInput) error
}

type UserHandler struct {
	endpoints PushEndpoints
}

func NewUserHandler(endpoints PushEndpoints) *UserHandler {
	return &UserHandler{endpoints: endpoints}
}

func (h *UserHandler) pushEndpointInput(c *fiber.Ctx) (service.PushEndpointInput, error) {
	var input service.PushEndpointInput
	if err := c.BodyParser(&input); err != nil {
		return input, errInvalidBody
	}
	input.Token = validation.NormalizePushToken(input.Token)
	return input, validation.Struct(input)
}

// RegisterPushToken records a device token for push notifications.
func (h *UserHandler) RegisterPushToken(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	input, err := h.pushEndpointInput(c)
	if err != nil {
		return httpx.FromError(c, err)
	}

	if _, err := h.endpoints.RegisterPushEndpoint(c.UserContext(), userID, input); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UnregisterPushToken forgets a device token, typically on logout.
func (h *UserHandler) UnregisterPushToken(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	input, err := h.pushEndpointInput(c)
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.endpoints.UnregisterPushEndpoint(c.UserContext(), userID, input); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
