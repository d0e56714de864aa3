package repository

import (
	"context"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

// UserRepositoryInterface defines the contract for user directory lookups
type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// PushEndpointRepositoryInterface defines the contract for push endpoint operations
type PushEndpointRepositoryInterface interface {
	ListByUser(ctx context.Context, userID uint) ([]models.PushEndpoint, error)
	Upsert(ctx context.Context, endpoint *models.PushEndpoint) error
	Delete(ctx context.Context, userID uint, token string, platform models.Platform) error
}

// ConversationRepositoryInterface defines the contract for conversation operations.
// unread_a/unread_b and the last_message_* columns are written only by
// AppendMessage and ResetUnread.
type ConversationRepositoryInterface interface {
	FindByID(ctx context.Context, id uint) (*models.Conversation, error)
	FindByPair(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	AppendMessage(ctx context.Context, message *models.Message) (*models.Conversation, bool, error)
	ResetUnread(ctx context.Context, conversation *models.Conversation, userID uint) error
	ListForUser(ctx context.Context, userID uint) ([]ConversationRow, error)
	UnreadTotal(ctx context.Context, userID uint) (int64, error)
}

// MessageRepositoryInterface defines the contract for message reads
type MessageRepositoryInterface interface {
	ListByConversation(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, error)
}
