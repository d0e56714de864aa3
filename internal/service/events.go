package service

import (
	"context"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

// Realtime events emitted to participants after a state change is committed.
const (
	EventMessageNew       = "message:new"
	EventConversationRead = "conversation:read"
	EventUnreadTotal      = "unread_total"
)

// Broadcaster delivers an event to every live connection of a user.
// Delivery is best effort; implementations must not block on slow clients.
type Broadcaster interface {
	BroadcastToUser(userID uint, event string, payload interface{})
}

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	IsOnline(ctx context.Context, userID uint) bool
}

type nopPresence struct{}

func (nopPresence) IsOnline(context.Context, uint) bool { return false }

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToUser(uint, string, interface{}) {}

// MessageEvent is sent to both participants for every stored message.
// UnreadCount is the receiving user's own counter on the conversation.
type MessageEvent struct {
	Message     models.MessageResponse `json:"message"`
	UnreadCount int64                  `json:"unread_count"`
}

type ReadEvent struct {
	ConversationID uint  `json:"conversation_id"`
	UnreadTotal    int64 `json:"unread_total"`
}

type UnreadTotalEvent struct {
	UnreadTotal int64 `json:"unread_total"`
}
