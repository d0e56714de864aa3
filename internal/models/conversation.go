package models

import "time"

// Conversation is the single thread between two users. ParticipantAID is
// always the smaller id, so a pair maps to exactly one row.
type Conversation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ParticipantAID uint `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:1;index" json:"-"`
	ParticipantBID uint `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:2;index" json:"-"`

	UnreadA int64 `gorm:"not null;default:0;check:unread_a >= 0" json:"-"`
	UnreadB int64 `gorm:"not null;default:0;check:unread_b >= 0" json:"-"`

	// Denormalized tail so lists need no message lookup.
	LastMessageAt       *time.Time `gorm:"index" json:"last_message_at"`
	LastMessageText     string     `gorm:"type:text" json:"last_message_text,omitempty"`
	LastMessageSenderID *uint      `json:"last_message_sender_id,omitempty"`
}

// NewConversation builds an unsaved conversation for the pair in canonical order.
func NewConversation(userID1, userID2 uint) *Conversation {
	a, b := SortPair(userID1, userID2)
	return &Conversation{ParticipantAID: a, ParticipantBID: b}
}

// SortPair returns the two ids smallest first.
func SortPair(userID1, userID2 uint) (uint, uint) {
	if userID1 > userID2 {
		return userID2, userID1
	}
	return userID1, userID2
}

func (c *Conversation) ParticipantIDs() []uint {
	return []uint{c.ParticipantAID, c.ParticipantBID}
}

func (c *Conversation) HasParticipant(userID uint) bool {
	return userID != 0 && (c.ParticipantAID == userID || c.ParticipantBID == userID)
}

// OtherParticipant returns the peer of userID, or 0 if userID is not a participant.
func (c *Conversation) OtherParticipant(userID uint) uint {
	switch userID {
	case c.ParticipantAID:
		return c.ParticipantBID
	case c.ParticipantBID:
		return c.ParticipantAID
	}
	return 0
}

// UnreadFor returns the unread counter of userID.
func (c *Conversation) UnreadFor(userID uint) int64 {
	switch userID {
	case c.ParticipantAID:
		return c.UnreadA
	case c.ParticipantBID:
		return c.UnreadB
	}
	return 0
}

// UnreadColumn names the counter column owned by userID.
func (c *Conversation) UnreadColumn(userID uint) string {
	if userID == c.ParticipantAID {
		return "unread_a"
	}
	return "unread_b"
}

func (c *Conversation) UnreadCounts() map[uint]int64 {
	return map[uint]int64{
		c.ParticipantAID: c.UnreadA,
		c.ParticipantBID: c.UnreadB,
	}
}

type ConversationResponse struct {
	ID                  uint           `json:"id"`
	ParticipantIDs      []uint         `json:"participant_ids"`
	UnreadCounts        map[uint]int64 `json:"unread_counts"`
	LastMessageAt       *time.Time     `json:"last_message_at"`
	LastMessageText     string         `json:"last_message_text,omitempty"`
	LastMessageSenderID *uint          `json:"last_message_sender_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

func (c *Conversation) ToResponse() ConversationResponse {
	return ConversationResponse{
		ID:                  c.ID,
		ParticipantIDs:      c.ParticipantIDs(),
		UnreadCounts:        c.UnreadCounts(),
		LastMessageAt:       c.LastMessageAt,
		LastMessageText:     c.LastMessageText,
		LastMessageSenderID: c.LastMessageSenderID,
		CreatedAt:           c.CreatedAt,
	}
}

// LastMessage is the denormalized tail of a conversation shown in lists.
type LastMessage struct {
	Text      string    `json:"text"`
	SenderID  uint      `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one row of a viewer's conversation list.
type ConversationSummary struct {
	ID                uint         `json:"id"`
	OtherParticipant  UserResponse `json:"participant"`
	ParticipantOnline bool         `json:"participant_online"`
	LastMessage       *LastMessage `json:"last_message"`
	LastMessageAt     *time.Time   `json:"last_message_at"`
	UnreadCount       int64        `json:"unread_count"`
	CreatedAt         time.Time    `json:"created_at"`
}
