package models

import (
	"time"
)

// Message is immutable once stored. ID grows with insertion order and breaks
// CreatedAt ties inside a conversation.
type Message struct {
	ID             uint      `gorm:"primarykey;index:idx_messages_conversation_created,priority:3" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"created_at"`

	// Client-side tracking
	ClientID string `gorm:"type:varchar(36);uniqueIndex:idx_message_client_sender;not null" json:"client_id"` // UUID for deduplication
	SenderID uint   `gorm:"not null;uniqueIndex:idx_message_client_sender" json:"sender_id"`

	Text string `gorm:"type:text;not null" json:"text"`
}

type MessageResponse struct {
	ID             uint      `json:"id"`
	ClientID       string    `json:"client_id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ClientID:       m.ClientID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
	}
}
