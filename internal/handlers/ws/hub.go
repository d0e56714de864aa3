package ws

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	gzipThreshold = 512
	writeWait     = 10 * time.Second
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live connection. A user with several devices has several.
type Client struct {
	ID           uint64
	UserID       uint
	SupportsGzip bool

	conn      Conn
	writeMu   sync.Mutex
	lastPong  atomic.Int64
	closeChan chan struct{}
	closeOnce sync.Once
}

func (c *Client) touch() {
	c.lastPong.Store(time.Now().UnixNano())
}

func (c *Client) lastPongAt() time.Time {
	return time.Unix(0, c.lastPong.Load())
}

// write serializes frames; the websocket connection allows one writer at a time.
// A peer that does not take the frame within writeWait fails the write.
func (c *Client) write(frameType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(frameType, data)
}

func (c *Client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
}

// Envelope is the outbound frame: {"type": event, "payload": ...}.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub tracks live connections per user and delivers events to them.
type Hub struct {
	clients      map[uint]map[uint64]*Client
	clientsMux   sync.RWMutex
	nextID       atomic.Uint64
	pingInterval time.Duration
	pongTimeout  time.Duration
	onLastLeave  func(userID uint)
	onPong       func(userID uint)
	stop         chan struct{}
	stopOnce     sync.Once
	logger       *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return newHub(logger, 30*time.Second, 90*time.Second)
}

func newHub(logger *zap.Logger, pingInterval, pongTimeout time.Duration) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &Hub{
		clients:      make(map[uint]map[uint64]*Client),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		stop:         make(chan struct{}),
		logger:       logger.Named("ws"),
	}

	go hub.connectionHealthChecker()

	return hub
}

// OnLastDisconnect registers a callback run when a user's last connection goes away.
func (h *Hub) OnLastDisconnect(fn func(userID uint)) {
	h.onLastLeave = fn
}

// OnPong registers a callback run whenever a connection answers a ping.
// Register it before the first connection arrives.
func (h *Hub) OnPong(fn func(userID uint)) {
	h.onPong = fn
}

// Close stops background workers. Connections are left to their handlers.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Register adds a client connection with health monitoring
func (h *Hub) Register(userID uint, conn Conn, supportsGzip bool) *Client {
	client := &Client{
		ID:           h.nextID.Add(1),
		UserID:       userID,
		SupportsGzip: supportsGzip,
		conn:         conn,
		closeChan:    make(chan struct{}),
	}
	client.touch()

	conn.SetPongHandler(func(string) error {
		client.touch()
		if h.onPong != nil {
			h.onPong(userID)
		}
		return conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

	h.clientsMux.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[uint64]*Client)
	}
	h.clients[userID][client.ID] = client
	devices := len(h.clients[userID])
	h.clientsMux.Unlock()

	go h.pingRoutine(client)

	h.logger.Info("client connected",
		zap.Uint("user_id", userID),
		zap.Uint64("conn_id", client.ID),
		zap.Int("devices", devices),
		zap.Bool("gzip", supportsGzip))
	return client
}

// Unregister removes a client connection. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.clientsMux.Lock()
	conns, ok := h.clients[client.UserID]
	_, present := conns[client.ID]
	if ok && present {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	last := ok && present && len(conns) == 0
	h.clientsMux.Unlock()

	client.closeOnce.Do(func() {
		close(client.closeChan)
		_ = client.conn.Close()
	})

	if !present {
		return
	}
	h.logger.Info("client disconnected", zap.Uint("user_id", client.UserID), zap.Uint64("conn_id", client.ID))
	if last && h.onLastLeave != nil {
		h.onLastLeave(client.UserID)
	}
}

// IsOnline checks if a user has at least one connection
func (h *Hub) IsOnline(userID uint) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients[userID]) > 0
}

// LocalPresence reports users holding a connection on this instance. It is
// the presence source when no shared cache is configured.
type LocalPresence struct {
	Hub *Hub
}

func (p LocalPresence) IsOnline(_ context.Context, userID uint) bool {
	return p.Hub.IsOnline(userID)
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

func (h *Hub) clientsOf(userID uint) []*Client {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	out := make([]*Client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		out = append(out, c)
	}
	return out
}

// BroadcastToUser sends an event to every connection of userID on this
// instance. Connections that fail to take the write are dropped.
func (h *Hub) BroadcastToUser(userID uint, event string, payload interface{}) {
	clients := h.clientsOf(userID)
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	for _, client := range clients {
		if err := h.writeFrame(client, data); err != nil {
			h.logger.Warn("write failed, dropping connection",
				zap.Uint("user_id", userID),
				zap.Uint64("conn_id", client.ID),
				zap.Error(err))
			h.Unregister(client)
		}
	}
}

// Send writes a single event to one connection.
func (h *Hub) Send(client *Client, event string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		return err
	}
	return h.writeFrame(client, data)
}

// writeFrame compresses if supported and beneficial (> 512 bytes)
func (h *Hub) writeFrame(client *Client, data []byte) error {
	if client.SupportsGzip && len(data) > gzipThreshold {
		compressed, err := compressData(data)
		if err == nil && len(compressed) < len(data) {
			return client.write(websocket.BinaryMessage, compressed)
		}
	}
	return client.write(websocket.TextMessage, data)
}

// pingRoutine sends periodic ping messages to keep connection alive
func (h *Hub) pingRoutine(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("ping routine recovered from panic", zap.Uint("user_id", client.UserID), zap.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.closeChan:
			return
		case <-h.stop:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				h.logger.Debug("ping failed", zap.Uint("user_id", client.UserID), zap.Error(err))
				h.Unregister(client)
				return
			}
		}
	}
}

// connectionHealthChecker removes connections that stopped answering pings
func (h *Hub) connectionHealthChecker() {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.evictDead(time.Now())
		}
	}
}

func (h *Hub) evictDead(now time.Time) {
	h.clientsMux.RLock()
	dead := make([]*Client, 0)
	for _, conns := range h.clients {
		for _, client := range conns {
			if now.Sub(client.lastPongAt()) > h.pongTimeout {
				dead = append(dead, client)
			}
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range dead {
		h.logger.Info("removing dead connection", zap.Uint("user_id", client.UserID), zap.Uint64("conn_id", client.ID))
		h.Unregister(client)
	}
}

// compressData compresses data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}

	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecompressMessage inflates a gzip frame sent by the client
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(io.LimitReader(reader, 1<<20))
}
