package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/push"
	"github.com/orirot10/GIVEIT-sub000/internal/repository"
	"github.com/orirot10/GIVEIT-sub000/internal/validation"
)

// Notifier accepts new-message notifications for asynchronous delivery.
type Notifier interface {
	Enqueue(n push.MessageNotification) bool
}

type nopNotifier struct{}

func (nopNotifier) Enqueue(push.MessageNotification) bool { return false }

var errInvalidClientID = apperr.InvalidArg("client_id must be a uuid")

type ConversationService struct {
	convRepo         repository.ConversationRepositoryInterface
	msgRepo          repository.MessageRepositoryInterface
	userRepo         repository.UserRepositoryInterface
	notifier         Notifier
	broadcaster      Broadcaster
	presence         Presence
	maxMessageLength int
	logger           *zap.Logger
}

func NewConversationService(
	convRepo repository.ConversationRepositoryInterface,
	msgRepo repository.MessageRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	notifier Notifier,
	broadcaster Broadcaster,
	presence Presence,
	maxMessageLength int,
	logger *zap.Logger,
) *ConversationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if presence == nil {
		presence = nopPresence{}
	}
	if maxMessageLength <= 0 {
		maxMessageLength = validation.DefaultMaxMessageLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		convRepo:         convRepo,
		msgRepo:          msgRepo,
		userRepo:         userRepo,
		notifier:         notifier,
		broadcaster:      broadcaster,
		presence:         presence,
		maxMessageLength: maxMessageLength,
		logger:           logger.Named("conversations"),
	}
}

type OpenConversationInput struct {
	OtherParticipantID uint `json:"participant_id" validate:"required"`
	// SeedMessage is sent as the first message when the conversation is new,
	// e.g. the title of the listing being asked about.
	SeedMessage string `json:"seed_message,omitempty"`
}

type SendMessageInput struct {
	ConversationID uint
	SenderID       uint
	Text           string
	ClientID       string
}

// MessageQuery pages GetMessages. Limit 0 returns the whole history.
type MessageQuery struct {
	Limit  int
	Offset int
}

// OpenConversation returns the conversation between requesterID and the other
// participant, creating it on first use. created reports whether this call
// created it.
func (s *ConversationService) OpenConversation(ctx context.Context, requesterID uint, input OpenConversationInput) (conv *models.Conversation, created bool, err error) {
	otherID := input.OtherParticipantID
	if requesterID == 0 || otherID == 0 {
		return nil, false, apperr.ErrInvalidID
	}
	if requesterID == otherID {
		return nil, false, apperr.ErrSelfConversation
	}
	if _, err := s.userRepo.FindByID(ctx, otherID); err != nil {
		return nil, false, err
	}

	conv, err = s.convRepo.FindByPair(ctx, requesterID, otherID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, apperr.ErrConversationNotFound) {
		return nil, false, err
	}

	conv = models.NewConversation(requesterID, otherID)
	if err := s.convRepo.Create(ctx, conv); err != nil {
		if !apperr.Is(err, apperr.CodeConflict) {
			return nil, false, err
		}
		// Lost the creation race; the winner's row is the conversation.
		conv, err = s.convRepo.FindByPair(ctx, requesterID, otherID)
		if err != nil {
			return nil, false, err
		}
		return conv, false, nil
	}

	s.logger.Info("conversation created",
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("requester_id", requesterID),
		zap.Uint("participant_id", otherID))

	if seed := strings.TrimSpace(input.SeedMessage); seed != "" {
		_, updated, err := s.send(ctx, SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       requesterID,
			Text:           seed,
		})
		if err != nil {
			s.logger.Warn("seed message failed", zap.Uint("conversation_id", conv.ID), zap.Error(err))
		} else {
			conv = updated
		}
	}

	return conv, true, nil
}

// SendMessage stores a message and bumps the recipient's unread counter as one
// unit. Notification and realtime delivery happen afterwards and cannot fail
// the send.
func (s *ConversationService) SendMessage(ctx context.Context, input SendMessageInput) (*models.Message, error) {
	msg, _, err := s.send(ctx, input)
	return msg, err
}

func (s *ConversationService) send(ctx context.Context, input SendMessageInput) (*models.Message, *models.Conversation, error) {
	if input.ConversationID == 0 || input.SenderID == 0 {
		return nil, nil, apperr.ErrInvalidID
	}
	text := validation.TrimAndLimit(input.Text, s.maxMessageLength)
	if text == "" {
		return nil, nil, apperr.ErrEmptyMessage
	}
	clientID := strings.TrimSpace(input.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	} else if !validation.ValidClientID(clientID) {
		return nil, nil, errInvalidClientID
	}

	conv, err := s.convRepo.FindByID(ctx, input.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(input.SenderID) {
		return nil, nil, apperr.ErrNotParticipant
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       input.SenderID,
		ClientID:       clientID,
		Text:           text,
	}
	updated, created, err := s.convRepo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, nil, err
	}
	if !created {
		// Client retry of a message we already stored.
		return msg, updated, nil
	}

	s.afterSend(ctx, updated, msg)
	return msg, updated, nil
}

func (s *ConversationService) afterSend(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	recipientID := conv.OtherParticipant(msg.SenderID)

	total, err := s.convRepo.UnreadTotal(ctx, recipientID)
	if err != nil {
		s.logger.Warn("unread total unavailable after send", zap.Uint("user_id", recipientID), zap.Error(err))
		total = conv.UnreadFor(recipientID)
	}

	s.notifier.Enqueue(push.MessageNotification{
		RecipientID:    recipientID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		UnreadTotal:    total,
		ConversationID: conv.ID,
	})

	resp := msg.ToResponse()
	s.broadcaster.BroadcastToUser(msg.SenderID, EventMessageNew, MessageEvent{
		Message:     resp,
		UnreadCount: conv.UnreadFor(msg.SenderID),
	})
	s.broadcaster.BroadcastToUser(recipientID, EventMessageNew, MessageEvent{
		Message:     resp,
		UnreadCount: conv.UnreadFor(recipientID),
	})
	s.broadcaster.BroadcastToUser(recipientID, EventUnreadTotal, UnreadTotalEvent{UnreadTotal: total})
}

// ListConversations returns the viewer's conversations, most recent first.
// Conversations without messages come last. ParticipantOnline reflects the
// presence source and may lag a dropped connection by the presence TTL.
func (s *ConversationService) ListConversations(ctx context.Context, viewerID uint) ([]models.ConversationSummary, error) {
	if viewerID == 0 {
		return nil, apperr.ErrInvalidID
	}
	rows, err := s.convRepo.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		summary := models.ConversationSummary{
			ID:               row.ID,
			OtherParticipant:  row.Peer().ToResponse(),
			ParticipantOnline: s.presence.IsOnline(ctx, row.PeerID),
			LastMessageAt:     row.LastMessageAt,
			UnreadCount:       row.UnreadCount,
			CreatedAt:         row.CreatedAt,
		}
		if row.LastMessageAt != nil && row.LastMessageSenderID != nil {
			summary.LastMessage = &models.LastMessage{
				Text:      row.LastMessageText,
				SenderID:  *row.LastMessageSenderID,
				CreatedAt: *row.LastMessageAt,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetUnreadTotal sums the viewer's unread counters over all conversations.
func (s *ConversationService) GetUnreadTotal(ctx context.Context, viewerID uint) (int64, error) {
	if viewerID == 0 {
		return 0, apperr.ErrInvalidID
	}
	return s.convRepo.UnreadTotal(ctx, viewerID)
}

// MarkConversationRead zeroes the viewer's counter. Calling it with nothing
// unread is a no-op.
func (s *ConversationService) MarkConversationRead(ctx context.Context, conversationID, viewerID uint) error {
	conv, err := s.participantConversation(ctx, conversationID, viewerID)
	if err != nil {
		return err
	}
	if err := s.convRepo.ResetUnread(ctx, conv, viewerID); err != nil {
		return err
	}

	total, err := s.convRepo.UnreadTotal(ctx, viewerID)
	if err != nil {
		s.logger.Warn("unread total unavailable after read", zap.Uint("user_id", viewerID), zap.Error(err))
		return nil
	}
	s.broadcaster.BroadcastToUser(viewerID, EventConversationRead, ReadEvent{
		ConversationID: conv.ID,
		UnreadTotal:    total,
	})
	return nil
}

// GetMessages returns the conversation history oldest first. It does not
// change unread state.
func (s *ConversationService) GetMessages(ctx context.Context, conversationID, viewerID uint, query MessageQuery) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	if query.Limit < 0 {
		query.Limit = 0
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	return s.msgRepo.ListByConversation(ctx, conversationID, query.Limit, query.Offset)
}

func (s *ConversationService) participantConversation(ctx context.Context, conversationID, viewerID uint) (*models.Conversation, error) {
	if conversationID == 0 || viewerID == 0 {
		return nil, apperr.ErrInvalidID
	}
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperr.ErrNotParticipant
	}
	return conv, nil
}
