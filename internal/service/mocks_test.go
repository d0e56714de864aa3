package service

import (
	"context"
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/push"
	"github.com/orirot10/GIVEIT-sub000/internal/repository"
)

// memStore backs all mock repositories. One mutex stands in for the row lock
// the real store takes, so every mutation is atomic.
type memStore struct {
	mu         sync.Mutex
	users      map[uint]*models.User
	endpoints  map[uint][]models.PushEndpoint
	convs      map[uint]*models.Conversation
	messages   []models.Message
	nextConvID uint
	nextMsgID  uint

	// beforeCreate runs under the lock ahead of a conversation insert.
	beforeCreate func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[uint]*models.User{},
		endpoints:  map[uint][]models.PushEndpoint{},
		convs:      map[uint]*models.Conversation{},
		nextConvID: 1,
		nextMsgID:  1,
	}
}

func (s *memStore) addUser(id uint, first, last string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, FirstName: first, LastName: last}
	s.users[id] = u
	return u
}

func (s *memStore) insertConvLocked(conv *models.Conversation) {
	conv.ID = s.nextConvID
	s.nextConvID++
	conv.CreatedAt = time.Now()
	cp := *conv
	s.convs[conv.ID] = &cp
}

func (s *memStore) findPairLocked(a, b uint) *models.Conversation {
	for _, c := range s.convs {
		if c.ParticipantAID == a && c.ParticipantBID == b {
			return c
		}
	}
	return nil
}

func (s *memStore) conversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// snapshot returns a copy of the stored conversation.
func (s *memStore) snapshot(id uint) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.convs[id]
	return &cp
}

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) FindByID(_ context.Context, id uint) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.ErrUserNotFound
}

type mockEndpointRepo struct{ s *memStore }

func (m *mockEndpointRepo) ListByUser(_ context.Context, userID uint) ([]models.PushEndpoint, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]models.PushEndpoint(nil), m.s.endpoints[userID]...), nil
}

func (m *mockEndpointRepo) Upsert(_ context.Context, endpoint *models.PushEndpoint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	list := m.s.endpoints[endpoint.UserID]
	for i := range list {
		if list[i].Token == endpoint.Token && list[i].Platform == endpoint.Platform {
			list[i].UpdatedAt = time.Now()
			return nil
		}
	}
	endpoint.UpdatedAt = time.Now()
	m.s.endpoints[endpoint.UserID] = append(list, *endpoint)
	return nil
}

func (m *mockEndpointRepo) Delete(_ context.Context, userID uint, token string, platform models.Platform) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	list := m.s.endpoints[userID]
	kept := list[:0]
	for _, ep := range list {
		if ep.Token != token || ep.Platform != platform {
			kept = append(kept, ep)
		}
	}
	m.s.endpoints[userID] = kept
	return nil
}

type mockConversationRepo struct{ s *memStore }

func (m *mockConversationRepo) FindByID(_ context.Context, id uint) (*models.Conversation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.convs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperr.ErrConversationNotFound
}

func (m *mockConversationRepo) FindByPair(_ context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	a, b := models.SortPair(userID1, userID2)
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c := m.s.findPairLocked(a, b); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, apperr.ErrConversationNotFound
}

func (m *mockConversationRepo) Create(_ context.Context, conv *models.Conversation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.beforeCreate != nil {
		m.s.beforeCreate(m.s)
	}
	if m.s.findPairLocked(conv.ParticipantAID, conv.ParticipantBID) != nil {
		return pkgerrors.Wrap(apperr.ErrDuplicateKey, "create conversation")
	}
	m.s.insertConvLocked(conv)
	return nil
}

func (m *mockConversationRepo) AppendMessage(_ context.Context, msg *models.Message) (*models.Conversation, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	c, ok := m.s.convs[msg.ConversationID]
	if !ok {
		return nil, false, apperr.ErrConversationNotFound
	}
	if !c.HasParticipant(msg.SenderID) {
		return nil, false, apperr.ErrNotParticipant
	}
	for _, existing := range m.s.messages {
		if existing.SenderID == msg.SenderID && existing.ClientID == msg.ClientID {
			if existing.ConversationID != msg.ConversationID {
				return nil, false, apperr.ErrClientIDReused
			}
			*msg = existing
			cp := *c
			return &cp, false, nil
		}
	}

	now := time.Now()
	if c.LastMessageAt != nil && now.Before(*c.LastMessageAt) {
		now = *c.LastMessageAt
	}
	msg.ID = m.s.nextMsgID
	m.s.nextMsgID++
	msg.CreatedAt = now
	m.s.messages = append(m.s.messages, *msg)

	if c.OtherParticipant(msg.SenderID) == c.ParticipantAID {
		c.UnreadA++
	} else {
		c.UnreadB++
	}
	senderID := msg.SenderID
	c.LastMessageAt = &now
	c.LastMessageText = msg.Text
	c.LastMessageSenderID = &senderID

	cp := *c
	return &cp, true, nil
}

func (m *mockConversationRepo) ResetUnread(_ context.Context, conv *models.Conversation, userID uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.convs[conv.ID]
	if !ok {
		return apperr.ErrConversationNotFound
	}
	if !c.HasParticipant(userID) {
		return apperr.ErrNotParticipant
	}
	if userID == c.ParticipantAID {
		c.UnreadA = 0
	} else {
		c.UnreadB = 0
	}
	return nil
}

func (m *mockConversationRepo) ListForUser(_ context.Context, userID uint) ([]repository.ConversationRow, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	rows := []repository.ConversationRow{}
	for _, c := range m.s.convs {
		if !c.HasParticipant(userID) {
			continue
		}
		peerID := c.OtherParticipant(userID)
		row := repository.ConversationRow{
			ID:                  c.ID,
			CreatedAt:           c.CreatedAt,
			UnreadCount:         c.UnreadFor(userID),
			LastMessageAt:       c.LastMessageAt,
			LastMessageText:     c.LastMessageText,
			LastMessageSenderID: c.LastMessageSenderID,
			PeerID:              peerID,
		}
		if u, ok := m.s.users[peerID]; ok {
			row.PeerDisplayName = u.DisplayName
			row.PeerFirstName = u.FirstName
			row.PeerLastName = u.LastName
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		case a.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return rows, nil
}

func (m *mockConversationRepo) UnreadTotal(_ context.Context, userID uint) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var total int64
	for _, c := range m.s.convs {
		total += c.UnreadFor(userID)
	}
	return total, nil
}

type mockMessageRepo struct{ s *memStore }

func (m *mockMessageRepo) ListByConversation(_ context.Context, conversationID uint, limit, offset int) ([]models.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []models.Message{}
	for _, msg := range m.s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type broadcastCall struct {
	UserID  uint
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) BroadcastToUser(userID uint, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{UserID: userID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) eventsFor(userID uint) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var events []string
	for _, c := range b.calls {
		if c.UserID == userID {
			events = append(events, c.Event)
		}
	}
	return events
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []push.MessageNotification
}

func (n *recordingNotifier) Enqueue(ev push.MessageNotification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return true
}

func (n *recordingNotifier) all() []push.MessageNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]push.MessageNotification(nil), n.events...)
}

// fixture wires a ConversationService over a fresh memStore.
type fixture struct {
	store       *memStore
	svc         *ConversationService
	users       *UserService
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
}

func newFixture() *fixture {
	store := newMemStore()
	notifier := &recordingNotifier{}
	broadcaster := &recordingBroadcaster{}
	return &fixture{
		store:       store,
		notifier:    notifier,
		broadcaster: broadcaster,
		svc:         newServiceWithNotifier(store, notifier, broadcaster),
		users:       NewUserService(&mockUserRepo{store}, &mockEndpointRepo{store}, nil, nil),
	}
}

func newServiceWithNotifier(store *memStore, notifier Notifier, broadcaster Broadcaster) *ConversationService {
	return NewConversationService(
		&mockConversationRepo{store},
		&mockMessageRepo{store},
		&mockUserRepo{store},
		notifier,
		broadcaster,
		nil,
		0,
		nil,
	)
}
