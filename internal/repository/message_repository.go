package repository

import (
	"context"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"gorm.io/gorm"
)

// MessageRepository only reads; messages are written by
// ConversationRepository.AppendMessage together with the counters.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

var errMessageNotFound = apperr.NotFound("message not found")

// ListByConversation returns messages oldest first. limit <= 0 means no limit.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	messages := []models.Message{}
	if err := q.Find(&messages).Error; err != nil {
		return nil, translate(err, errMessageNotFound, "list messages")
	}
	return messages, nil
}
