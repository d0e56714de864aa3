package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/service"
)

type frame struct {
	Type int
	Data []byte
}

type fakeConn struct {
	mu            sync.Mutex
	frames        []frame
	writeErr      error
	closed        bool
	writeDeadline time.Time
	onPong        func(string) error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, frame{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = t
	return nil
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPong = h
}

func (c *fakeConn) pong(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	h := c.onPong
	c.mu.Unlock()
	if h == nil {
		t.Fatal("no pong handler installed")
	}
	if err := h(""); err != nil {
		t.Fatalf("pong handler: %v", err)
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		data := f.Data
		if f.Type == websocket.BinaryMessage {
			var err error
			data, err = DecompressMessage(data)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		out = append(out, env)
	}
	return out
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := newHub(nil, time.Hour, time.Hour)
	t.Cleanup(h.Close)
	return h
}

func TestHub_BroadcastReachesEveryDevice(t *testing.T) {
	hub := newTestHub(t)
	phone, laptop, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register(1, phone, false)
	hub.Register(1, laptop, false)
	hub.Register(2, other, false)

	hub.BroadcastToUser(1, "message:new", map[string]string{"text": "hi"})

	for name, conn := range map[string]*fakeConn{"phone": phone, "laptop": laptop} {
		events := conn.events(t)
		if len(events) != 1 || events[0].Type != "message:new" {
			t.Errorf("%s got %+v", name, events)
		}
	}
	if len(other.events(t)) != 0 {
		t.Error("event leaked to another user")
	}
}

func TestHub_UnregisterKeepsOtherDevices(t *testing.T) {
	hub := newTestHub(t)
	var lastLeft []uint
	hub.OnLastDisconnect(func(userID uint) { lastLeft = append(lastLeft, userID) })

	a := hub.Register(1, &fakeConn{}, false)
	b := hub.Register(1, &fakeConn{}, false)

	hub.Unregister(a)
	hub.Unregister(a)
	if !hub.IsOnline(1) {
		t.Fatal("user should stay online with one device left")
	}
	if len(lastLeft) != 0 {
		t.Fatalf("last-disconnect fired early: %v", lastLeft)
	}

	hub.Unregister(b)
	if hub.IsOnline(1) {
		t.Error("user should be offline")
	}
	if len(lastLeft) != 1 || lastLeft[0] != 1 {
		t.Errorf("last-disconnect calls = %v", lastLeft)
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d", hub.Count())
	}
}

func TestHub_FailedWriteDropsConnection(t *testing.T) {
	hub := newTestHub(t)
	broken := &fakeConn{writeErr: errors.New("broken pipe")}
	healthy := &fakeConn{}
	hub.Register(1, broken, false)
	hub.Register(1, healthy, false)

	hub.BroadcastToUser(1, "unread_total", map[string]int{"unread_total": 1})

	if hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", hub.Count())
	}
	if !broken.closed {
		t.Error("broken connection was not closed")
	}
	if len(healthy.events(t)) != 1 {
		t.Error("healthy connection missed the event")
	}
}

func TestHub_GzipLargeFrames(t *testing.T) {
	hub := newTestHub(t)
	conn := &fakeConn{}
	hub.Register(1, conn, true)

	hub.BroadcastToUser(1, "messages", map[string]string{"text": strings.Repeat("a", 4096)})
	hub.BroadcastToUser(1, "pong", nil)

	conn.mu.Lock()
	types := []int{conn.frames[0].Type, conn.frames[1].Type}
	conn.mu.Unlock()
	if types[0] != websocket.BinaryMessage || types[1] != websocket.TextMessage {
		t.Errorf("frame types = %v", types)
	}
	if events := conn.events(t); events[0].Type != "messages" {
		t.Errorf("unexpected event %q", events[0].Type)
	}
}

func TestHub_WritesCarryDeadline(t *testing.T) {
	hub := newTestHub(t)
	conn := &fakeConn{}
	hub.Register(1, conn, false)

	before := time.Now()
	hub.BroadcastToUser(1, "unread_total", map[string]int{"unread_total": 1})

	conn.mu.Lock()
	deadline := conn.writeDeadline
	conn.mu.Unlock()
	if deadline.IsZero() || deadline.Before(before) || deadline.After(time.Now().Add(writeWait)) {
		t.Errorf("write deadline = %v, want about now+%v", deadline, writeWait)
	}
}

func TestHub_PongRunsCallbackAndKeepsConnectionAlive(t *testing.T) {
	hub := newTestHub(t)
	var ponged []uint
	hub.OnPong(func(userID uint) { ponged = append(ponged, userID) })

	conn := &fakeConn{}
	client := hub.Register(4, conn, false)
	client.lastPong.Store(time.Now().Add(-3 * time.Hour).UnixNano())

	conn.pong(t)

	if len(ponged) != 1 || ponged[0] != 4 {
		t.Errorf("pong callbacks = %v", ponged)
	}
	hub.evictDead(time.Now())
	if !hub.IsOnline(4) {
		t.Error("connection that answered a ping was evicted")
	}
}

func TestLocalPresence(t *testing.T) {
	hub := newTestHub(t)
	presence := LocalPresence{Hub: hub}
	client := hub.Register(6, &fakeConn{}, false)

	if !presence.IsOnline(context.Background(), 6) {
		t.Error("connected user reported offline")
	}
	hub.Unregister(client)
	if presence.IsOnline(context.Background(), 6) {
		t.Error("disconnected user reported online")
	}
}

func TestHub_EvictsDeadConnections(t *testing.T) {
	hub := newTestHub(t)
	conn := &fakeConn{}
	hub.Register(1, conn, false)

	hub.evictDead(time.Now().Add(2 * time.Hour))

	if hub.IsOnline(1) {
		t.Error("stale connection should be evicted")
	}
}

func TestDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr bool
	}{
		{"send", `{"type":"send_message","payload":{"conversation_id":3,"text":"hi","client_id":"x"}}`, &MessageSend{ConversationID: 3, Text: "hi", ClientID: "x"}, false},
		{"mark read", `{"type":"mark_read","payload":{"conversation_id":4}}`, &MessageMarkRead{ConversationID: 4}, false},
		{"no payload", `{"type":"get_conversations"}`, &MessageGetConversations{}, false},
		{"unknown", `{"type":"typing","payload":{}}`, nil, true},
		{"garbage", `not json`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Deserialize([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Deserialize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, _ := json.Marshal(msg)
			want, _ := json.Marshal(tt.want)
			if msg.GetType() != tt.want.GetType() || string(got) != string(want) {
				t.Errorf("Deserialize() = %s (%s), want %s (%s)", got, msg.GetType(), want, tt.want.GetType())
			}
		})
	}
}

func TestTypeRegistryCoversInboundTypes(t *testing.T) {
	registry := GetTypeRegistry()
	for _, name := range []string{"ping", "pong", "send_message", "mark_read", "get_conversations", "get_messages", "open_conversation", "unread_total"} {
		if _, ok := registry[name]; !ok {
			t.Errorf("type %q not registered", name)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	data, err := Serialize(&MessageGetMessages{ConversationID: 9, Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := msg.(*MessageGetMessages)
	if !ok || got.ConversationID != 9 || got.Limit != 20 {
		t.Errorf("round trip produced %#v", msg)
	}
}

type fakeConversations struct {
	sent    []service.SendMessageInput
	read    []uint
	sendErr error
}

func (f *fakeConversations) OpenConversation(_ context.Context, requesterID uint, input service.OpenConversationInput) (*models.Conversation, bool, error) {
	if input.OtherParticipantID == requesterID {
		return nil, false, apperr.ErrSelfConversation
	}
	return &models.Conversation{ID: 5, ParticipantAID: requesterID, ParticipantBID: input.OtherParticipantID}, true, nil
}

func (f *fakeConversations) SendMessage(_ context.Context, input service.SendMessageInput) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, input)
	return &models.Message{ID: 1, ConversationID: input.ConversationID, SenderID: input.SenderID, Text: input.Text, ClientID: "generated"}, nil
}

func (f *fakeConversations) ListConversations(context.Context, uint) ([]models.ConversationSummary, error) {
	return []models.ConversationSummary{{ID: 5, UnreadCount: 2}}, nil
}

func (f *fakeConversations) GetUnreadTotal(context.Context, uint) (int64, error) {
	return 2, nil
}

func (f *fakeConversations) MarkConversationRead(_ context.Context, conversationID, _ uint) error {
	f.read = append(f.read, conversationID)
	return nil
}

func (f *fakeConversations) GetMessages(_ context.Context, conversationID, _ uint, _ service.MessageQuery) ([]models.Message, error) {
	return []models.Message{{ID: 1, ConversationID: conversationID, Text: "hi"}}, nil
}

func newMessageContext(t *testing.T, svc ConversationService) (*MessageContext, *fakeConn) {
	t.Helper()
	hub := newTestHub(t)
	conn := &fakeConn{}
	client := hub.Register(7, conn, false)
	return &MessageContext{
		Ctx:           context.Background(),
		UserID:        7,
		Client:        client,
		Hub:           hub,
		Conversations: svc,
	}, conn
}

func TestProcessors(t *testing.T) {
	tests := []struct {
		name      string
		msg       Message
		wantEvent string
	}{
		{"ping", &MessagePing{}, EventPong},
		{"send", &MessageSend{ConversationID: 5, Text: "hi"}, EventAck},
		{"mark read", &MessageMarkRead{ConversationID: 5}, EventAck},
		{"list", &MessageGetConversations{}, EventConversations},
		{"history", &MessageGetMessages{ConversationID: 5}, EventMessages},
		{"open", &MessageOpenConversation{ParticipantID: 8}, EventConversation},
		{"unread", &MessageUnreadTotal{}, service.EventUnreadTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeConversations{}
			ctx, conn := newMessageContext(t, svc)
			if err := tt.msg.Process(ctx); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			events := conn.events(t)
			if len(events) != 1 || events[0].Type != tt.wantEvent {
				t.Errorf("events = %+v, want one %q", events, tt.wantEvent)
			}
		})
	}
}

func TestMessageSend_UsesConnectionUser(t *testing.T) {
	svc := &fakeConversations{}
	ctx, _ := newMessageContext(t, svc)

	if err := (&MessageSend{ConversationID: 5, Text: "hi", ClientID: "c1"}).Process(ctx); err != nil {
		t.Fatal(err)
	}
	if len(svc.sent) != 1 || svc.sent[0].SenderID != 7 || svc.sent[0].ClientID != "c1" {
		t.Errorf("sent = %+v", svc.sent)
	}
}

func TestSendError(t *testing.T) {
	svc := &fakeConversations{sendErr: apperr.ErrNotParticipant}
	ctx, conn := newMessageContext(t, svc)

	msg := &MessageSend{ConversationID: 5, Text: "hi"}
	err := msg.Process(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := SendError(ctx.Hub, ctx.Client, msg.GetType(), err); err != nil {
		t.Fatal(err)
	}

	events := conn.events(t)
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v", events)
	}
	payload, _ := json.Marshal(events[0].Payload)
	if !strings.Contains(string(payload), "permission_denied") || !strings.Contains(string(payload), "send_message") {
		t.Errorf("error payload = %s", payload)
	}
}

func TestRelay_SkipsOwnEvents(t *testing.T) {
	hub := newTestHub(t)
	conn := &fakeConn{}
	hub.Register(3, conn, false)
	r := &NatsRelay{hub: hub, origin: "self"}

	data, err := r.encode(3, "message:new", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}

	r.deliver(userSubject(3), env)
	if len(conn.events(t)) != 0 {
		t.Fatal("own event delivered twice")
	}

	env.Origin = "other-instance"
	r.deliver(userSubject(3), env)
	events := conn.events(t)
	if len(events) != 1 || events[0].Type != "message:new" {
		t.Fatalf("events = %+v", events)
	}
	payload, _ := json.Marshal(events[0].Payload)
	if string(payload) != `{"text":"hi"}` {
		t.Errorf("payload = %s", payload)
	}
}
