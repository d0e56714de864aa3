package testutil

import (
	"testing"

	"github.com/google/uuid"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

// NewUser builds an unsaved user with a unique email.
func NewUser(displayName string) *models.User {
	return &models.User{
		Email:       uuid.NewString() + "@example.com",
		DisplayName: displayName,
	}
}

// NewMessage builds an unsaved text message with a fresh client id.
func NewMessage(conversationID, senderID uint, text string) *models.Message {
	if text == "" {
		text = "Test message"
	}
	return &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ClientID:       uuid.NewString(),
		Text:           text,
	}
}

// SetupTestEnv sets the variables config.Load requires. They are restored
// when the test ends.
func SetupTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
}
