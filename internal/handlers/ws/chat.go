package ws

import (
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/service"
)

// Outbound event types besides the ones the conversation service broadcasts.
const (
	EventPong          = "pong"
	EventAck           = "ack"
	EventError         = "error"
	EventConversations = "conversations"
	EventMessages      = "messages"
	EventConversation  = "conversation"
)

// MessageSend stores a chat message. The stored message reaches both
// participants as message:new; the sender also gets an ack.
type MessageSend struct {
	ConversationID uint   `json:"conversation_id"`
	Text           string `json:"text"`
	ClientID       string `json:"client_id"`
}

func (msg *MessageSend) GetType() string {
	return "send_message"
}

func (msg *MessageSend) Process(ctx *MessageContext) error {
	stored, err := ctx.Conversations.SendMessage(ctx.Ctx, service.SendMessageInput{
		ConversationID: msg.ConversationID,
		SenderID:       ctx.UserID,
		Text:           msg.Text,
		ClientID:       msg.ClientID,
	})
	if err != nil {
		return err
	}
	return ctx.Reply(EventAck, AckPayload{
		Request:  msg.GetType(),
		ClientID: stored.ClientID,
		Message:  stored.ToResponse(),
	})
}

type AckPayload struct {
	Request  string                 `json:"request"`
	ClientID string                 `json:"client_id,omitempty"`
	Message  models.MessageResponse `json:"message"`
}

// MessageMarkRead resets the caller's unread counter on a conversation.
type MessageMarkRead struct {
	ConversationID uint `json:"conversation_id"`
}

func (msg *MessageMarkRead) GetType() string {
	return "mark_read"
}

func (msg *MessageMarkRead) Process(ctx *MessageContext) error {
	if err := ctx.Conversations.MarkConversationRead(ctx.Ctx, msg.ConversationID, ctx.UserID); err != nil {
		return err
	}
	return ctx.Reply(EventAck, map[string]interface{}{
		"request":         msg.GetType(),
		"conversation_id": msg.ConversationID,
	})
}

type MessageGetConversations struct {
}

func (msg *MessageGetConversations) GetType() string {
	return "get_conversations"
}

func (msg *MessageGetConversations) Process(ctx *MessageContext) error {
	list, err := ctx.Conversations.ListConversations(ctx.Ctx, ctx.UserID)
	if err != nil {
		return err
	}
	return ctx.Reply(EventConversations, map[string]interface{}{
		"conversations": list,
	})
}

type MessageGetMessages struct {
	ConversationID uint `json:"conversation_id"`
	Limit          int  `json:"limit"`
	Offset         int  `json:"offset"`
}

func (msg *MessageGetMessages) GetType() string {
	return "get_messages"
}

func (msg *MessageGetMessages) Process(ctx *MessageContext) error {
	messages, err := ctx.Conversations.GetMessages(ctx.Ctx, msg.ConversationID, ctx.UserID, service.MessageQuery{
		Limit:  msg.Limit,
		Offset: msg.Offset,
	})
	if err != nil {
		return err
	}

	out := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].ToResponse())
	}
	return ctx.Reply(EventMessages, map[string]interface{}{
		"conversation_id": msg.ConversationID,
		"messages":        out,
	})
}

type MessageOpenConversation struct {
	ParticipantID uint   `json:"participant_id"`
	SeedMessage   string `json:"seed_message"`
}

func (msg *MessageOpenConversation) GetType() string {
	return "open_conversation"
}

func (msg *MessageOpenConversation) Process(ctx *MessageContext) error {
	conv, created, err := ctx.Conversations.OpenConversation(ctx.Ctx, ctx.UserID, service.OpenConversationInput{
		OtherParticipantID: msg.ParticipantID,
		SeedMessage:        msg.SeedMessage,
	})
	if err != nil {
		return err
	}
	return ctx.Reply(EventConversation, map[string]interface{}{
		"conversation": conv.ToResponse(),
		"created":      created,
	})
}

type MessageUnreadTotal struct {
}

func (msg *MessageUnreadTotal) GetType() string {
	return "unread_total"
}

func (msg *MessageUnreadTotal) Process(ctx *MessageContext) error {
	total, err := ctx.Conversations.GetUnreadTotal(ctx.Ctx, ctx.UserID)
	if err != nil {
		return err
	}
	return ctx.Reply(service.EventUnreadTotal, service.UnreadTotalEvent{UnreadTotal: total})
}
