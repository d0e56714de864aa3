package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/orirot10/GIVEIT-sub000/internal/cache"
	"github.com/orirot10/GIVEIT-sub000/internal/handlers/ws"
)

type WebSocketHandler struct {
	conversations ws.ConversationService
	hub           *ws.Hub
	presence      *cache.PresenceCache
	logger        *zap.Logger
}

func NewWebSocketHandler(conversations ws.ConversationService, hub *ws.Hub, presence *cache.PresenceCache, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &WebSocketHandler{
		conversations: conversations,
		hub:           hub,
		presence:      presence,
		logger:        logger.Named("ws"),
	}
	// Idle clients only answer pings, so pongs keep the presence key alive.
	hub.OnPong(h.refreshPresence)
	return h
}

func (h *WebSocketHandler) refreshPresence(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Refresh(ctx, userID); err != nil {
		h.logger.Debug("presence refresh failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// HandleWebSocket serves one connection for its whole lifetime. The
// connection receives every event addressed to the authenticated user.
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, ok := c.Locals("userID").(uint)
	if !ok || userID == 0 {
		_ = c.Close()
		return
	}

	// Check if client supports gzip compression (via query param or header)
	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := h.hub.Register(userID, c, supportsGzip)
	if err := h.presence.Connect(ctx, userID); err != nil {
		h.logger.Warn("presence connect failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	defer func() {
		h.hub.Unregister(client)
		if err := h.presence.Disconnect(context.Background(), userID); err != nil {
			h.logger.Warn("presence disconnect failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}()

	msgCtx := &ws.MessageContext{
		Ctx:           ctx,
		UserID:        userID,
		Client:        client,
		Hub:           h.hub,
		Conversations: h.conversations,
	}

	for {
		messageType, messageBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read failed", zap.Uint("user_id", userID), zap.Error(err))
			}
			return
		}

		h.refreshPresence(userID)

		h.handleFrame(msgCtx, messageType, messageBytes)
	}
}

func (h *WebSocketHandler) handleFrame(ctx *ws.MessageContext, messageType int, data []byte) {
	// Decompress if binary message (gzip compressed)
	if messageType == websocket.BinaryMessage {
		decompressed, err := ws.DecompressMessage(data)
		if err != nil {
			h.replyError(ctx, "", errDecompress)
			return
		}
		data = decompressed
	}

	msg, err := ws.Deserialize(data)
	if err != nil {
		h.logger.Debug("invalid frame", zap.Uint("user_id", ctx.UserID), zap.Error(err))
		h.replyError(ctx, "", errInvalidFrame)
		return
	}

	if err := msg.Process(ctx); err != nil {
		h.logger.Debug("process failed",
			zap.Uint("user_id", ctx.UserID),
			zap.String("type", msg.GetType()),
			zap.Error(err))
		h.replyError(ctx, msg.GetType(), err)
	}
}

func (h *WebSocketHandler) replyError(ctx *ws.MessageContext, request string, err error) {
	if sendErr := ws.SendError(ctx.Hub, ctx.Client, request, err); sendErr != nil {
		h.logger.Debug("error reply failed", zap.Uint("user_id", ctx.UserID), zap.Error(sendErr))
	}
}
