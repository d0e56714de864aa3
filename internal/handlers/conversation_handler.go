package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/handlers/ws"
	"github.com/orirot10/GIVEIT-sub000/internal/httpx"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/service"
	"github.com/orirot10/GIVEIT-sub000/internal/validation"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
)

var (
	errInvalidBody  = apperr.InvalidArg("invalid request body")
	errInvalidFrame = apperr.InvalidArg("invalid message format")
	errDecompress   = apperr.InvalidArg("failed to decompress message")
)

type ConversationHandler struct {
	conversations ws.ConversationService
}

func NewConversationHandler(conversations ws.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type sendMessageRequest struct {
	Text     string `json:"text" validate:"required"`
	ClientID string `json:"client_id" validate:"omitempty,uuid"`
}

// Open finds or creates the conversation with another user.
func (h *ConversationHandler) Open(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.OpenConversationInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.FromError(c, errInvalidBody)
	}
	if err := validation.Struct(input); err != nil {
		return httpx.FromError(c, err)
	}

	conv, created, err := h.conversations.OpenConversation(c.UserContext(), userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"conversation": conv.ToResponse(),
		"created":      created,
	})
}

// List returns the caller's conversations, most recent activity first.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	list, err := h.conversations.ListConversations(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	return c.JSON(fiber.Map{
		"conversations": list,
		"count":         len(list),
	})
}

func (h *ConversationHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	// limit=0 asks for the whole history.
	limit := httpx.QueryInt(c, "limit", defaultMessagePageSize)
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}
	offset := httpx.QueryInt(c, "offset", 0)

	messages, err := h.conversations.GetMessages(c.UserContext(), conversationID, userID, service.MessageQuery{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return httpx.FromError(c, err)
	}

	responses := make([]models.MessageResponse, len(messages))
	for i := range messages {
		responses[i] = messages[i].ToResponse()
	}
	return c.JSON(fiber.Map{
		"conversation_id": conversationID,
		"messages":        responses,
		"count":           len(responses),
		"limit":           limit,
		"offset":          offset,
	})
}

func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.FromError(c, errInvalidBody)
	}
	if err := validation.Struct(req); err != nil {
		return httpx.FromError(c, err)
	}

	message, err := h.conversations.SendMessage(c.UserContext(), service.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Text:           req.Text,
		ClientID:       req.ClientID,
	})
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.conversations.MarkConversationRead(c.UserContext(), conversationID, userID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *ConversationHandler) UnreadTotal(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	total, err := h.conversations.GetUnreadTotal(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(service.UnreadTotalEvent{UnreadTotal: total})
}
