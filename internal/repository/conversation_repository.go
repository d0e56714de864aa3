package repository

import (
	"context"
	"errors"
	"time"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRow is one conversation as seen by a viewer: the viewer's own
// unread counter plus the other participant's profile.
type ConversationRow struct {
	ID                  uint       `gorm:"column:id"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UnreadCount         int64      `gorm:"column:unread_count"`
	LastMessageAt       *time.Time `gorm:"column:last_message_at"`
	LastMessageText     string     `gorm:"column:last_message_text"`
	LastMessageSenderID *uint      `gorm:"column:last_message_sender_id"`

	PeerID          uint   `gorm:"column:peer_id"`
	PeerDisplayName string `gorm:"column:peer_display_name"`
	PeerFirstName   string `gorm:"column:peer_first_name"`
	PeerLastName    string `gorm:"column:peer_last_name"`
}

// Peer rebuilds the other participant from the joined columns.
func (r *ConversationRow) Peer() *models.User {
	return &models.User{
		ID:          r.PeerID,
		DisplayName: r.PeerDisplayName,
		FirstName:   r.PeerFirstName,
		LastName:    r.PeerLastName,
	}
}

type ConversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db, now: time.Now}
}

func (r *ConversationRepository) FindByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).First(&conversation, id).Error
	if err != nil {
		return nil, translate(err, apperr.ErrConversationNotFound, "find conversation")
	}
	return &conversation, nil
}

func (r *ConversationRepository) FindByPair(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	a, b := models.SortPair(userID1, userID2)
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_a_id = ? AND participant_b_id = ?", a, b).
		First(&conversation).Error
	if err != nil {
		return nil, translate(err, apperr.ErrConversationNotFound, "find conversation by pair")
	}
	return &conversation, nil
}

// Create inserts a conversation. A concurrent insert of the same pair fails
// with apperr.ErrDuplicateKey.
func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	conversation.ParticipantAID, conversation.ParticipantBID = models.SortPair(conversation.ParticipantAID, conversation.ParticipantBID)
	err := r.db.WithContext(ctx).Create(conversation).Error
	return translate(err, apperr.ErrConversationNotFound, "create conversation")
}

// AppendMessage stores message and advances the conversation in one
// transaction: recipient's counter +1 and the last_message_* tail set to the
// new message. The conversation row is locked for the duration, so sends to the
// same conversation are serialized and created_at never goes backwards.
//
// If the sender already stored a message with the same ClientID in this
// conversation, message is replaced by the stored one and created is false;
// nothing else changes. A ClientID already used in another conversation is
// rejected with apperr.ErrClientIDReused.
func (r *ConversationRepository) AppendMessage(ctx context.Context, message *models.Message) (*models.Conversation, bool, error) {
	var (
		conversation models.Conversation
		created      bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conversation, message.ConversationID).Error
		if err != nil {
			return translate(err, apperr.ErrConversationNotFound, "lock conversation")
		}
		if !conversation.HasParticipant(message.SenderID) {
			return apperr.ErrNotParticipant
		}

		var existing models.Message
		err = tx.Where("sender_id = ? AND client_id = ?", message.SenderID, message.ClientID).
			Take(&existing).Error
		if err == nil {
			if existing.ConversationID != message.ConversationID {
				return apperr.ErrClientIDReused
			}
			*message = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return translate(err, apperr.ErrConversationNotFound, "find message by client id")
		}

		createdAt := r.now().UTC()
		if conversation.LastMessageAt != nil && createdAt.Before(*conversation.LastMessageAt) {
			createdAt = *conversation.LastMessageAt
		}
		message.ID = 0
		message.CreatedAt = createdAt

		if err := tx.Create(message).Error; err != nil {
			return translate(err, apperr.ErrConversationNotFound, "create message")
		}

		recipient := conversation.OtherParticipant(message.SenderID)
		column := conversation.UnreadColumn(recipient)
		senderID := message.SenderID
		err = tx.Model(&models.Conversation{}).
			Where("id = ?", conversation.ID).
			Updates(map[string]interface{}{
				column:                   gorm.Expr(column + " + 1"),
				"last_message_at":        createdAt,
				"last_message_text":      message.Text,
				"last_message_sender_id": senderID,
				"updated_at":             gorm.Expr("NOW()"),
			}).Error
		if err != nil {
			return translate(err, apperr.ErrConversationNotFound, "advance conversation")
		}

		if recipient == conversation.ParticipantAID {
			conversation.UnreadA++
		} else {
			conversation.UnreadB++
		}
		conversation.LastMessageAt = &createdAt
		conversation.LastMessageText = message.Text
		conversation.LastMessageSenderID = &senderID
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &conversation, created, nil
}

// ResetUnread zeroes userID's counter. Resetting an already zero counter is a no-op.
func (r *ConversationRepository) ResetUnread(ctx context.Context, conversation *models.Conversation, userID uint) error {
	if !conversation.HasParticipant(userID) {
		return apperr.ErrNotParticipant
	}
	column := conversation.UnreadColumn(userID)
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND "+column+" <> 0", conversation.ID).
		Update(column, 0).Error
	return translate(err, apperr.ErrConversationNotFound, "reset unread")
}

// ListForUser returns every conversation of userID, most recent activity first.
// Conversations without messages sort after all others.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint) ([]ConversationRow, error) {
	var rows []ConversationRow
	err := r.db.WithContext(ctx).Raw(`
SELECT
	c.id,
	c.created_at,
	CASE WHEN c.participant_a_id = ? THEN c.unread_a ELSE c.unread_b END AS unread_count,
	c.last_message_at,
	c.last_message_text,
	c.last_message_sender_id,
	CASE WHEN c.participant_a_id = ? THEN c.participant_b_id ELSE c.participant_a_id END AS peer_id,
	COALESCE(peer.display_name, '') AS peer_display_name,
	COALESCE(peer.first_name, '') AS peer_first_name,
	COALESCE(peer.last_name, '') AS peer_last_name
FROM conversations c
LEFT JOIN users peer
	ON peer.id = CASE WHEN c.participant_a_id = ? THEN c.participant_b_id ELSE c.participant_a_id END
WHERE c.participant_a_id = ? OR c.participant_b_id = ?
ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC, c.id DESC
`, userID, userID, userID, userID, userID).Scan(&rows).Error
	if err != nil {
		return nil, translate(err, apperr.ErrConversationNotFound, "list conversations")
	}
	return rows, nil
}

// UnreadTotal sums userID's counters across all their conversations.
func (r *ConversationRepository) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
SELECT COALESCE(SUM(CASE WHEN participant_a_id = ? THEN unread_a ELSE unread_b END), 0)
FROM conversations
WHERE participant_a_id = ? OR participant_b_id = ?
`, userID, userID, userID).Scan(&total).Error
	if err != nil {
		return 0, translate(err, apperr.ErrConversationNotFound, "unread total")
	}
	return total, nil
}
