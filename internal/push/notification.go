// Package push fans new-message notifications out to a user's devices.
package push

import (
	"strconv"
	"unicode/utf8"
)

const (
	DefaultBodyMaxLength = 100
	DefaultTitle         = "Someone"
	DefaultSound         = "default"
	ellipsis             = "..."
	messageType          = "message"
)

// MessageNotification is the event the conversation service hands over after
// a message is stored.
type MessageNotification struct {
	RecipientID    uint
	SenderID       uint
	Text           string
	UnreadTotal    int64
	ConversationID uint
}

// Notification is the platform-neutral payload every channel renders from.
type Notification struct {
	Title string
	Body  string
	Badge int
	Sound string
	Data  map[string]string
}

// Truncate cuts text to max runes and appends "..." when something was cut.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + ellipsis
}

// BuildNotification renders the push payload for a new message.
func BuildNotification(n MessageNotification, senderName string, bodyMaxLength int) Notification {
	if senderName == "" {
		senderName = DefaultTitle
	}
	if bodyMaxLength <= 0 {
		bodyMaxLength = DefaultBodyMaxLength
	}
	return Notification{
		Title: senderName,
		Body:  Truncate(n.Text, bodyMaxLength),
		Badge: int(n.UnreadTotal),
		Sound: DefaultSound,
		Data: map[string]string{
			"senderId":        strconv.FormatUint(uint64(n.SenderID), 10),
			"senderName":      senderName,
			"type":            messageType,
			"conversation_id": strconv.FormatUint(uint64(n.ConversationID), 10),
			"unread_total":    strconv.FormatInt(n.UnreadTotal, 10),
		},
	}
}
