package ws

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/service"
)

// ConversationService is what the realtime channel needs from the conversation core.
type ConversationService interface {
	OpenConversation(ctx context.Context, requesterID uint, input service.OpenConversationInput) (*models.Conversation, bool, error)
	SendMessage(ctx context.Context, input service.SendMessageInput) (*models.Message, error)
	ListConversations(ctx context.Context, viewerID uint) ([]models.ConversationSummary, error)
	GetUnreadTotal(ctx context.Context, viewerID uint) (int64, error)
	MarkConversationRead(ctx context.Context, conversationID, viewerID uint) error
	GetMessages(ctx context.Context, conversationID, viewerID uint, query service.MessageQuery) ([]models.Message, error)
}

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	Ctx           context.Context
	UserID        uint
	Client        *Client
	Hub           *Hub
	Conversations ConversationService
}

// Reply sends an event back to the connection that made the request.
func (ctx *MessageContext) Reply(event string, payload interface{}) error {
	return ctx.Hub.Send(ctx.Client, event, payload)
}

// Message interface for all WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorPayload is sent when message processing fails
type ErrorPayload struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Request string `json:"request,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	if len(jsonBytes) == 0 || string(jsonBytes) == "null" {
		return nil
	}
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError replies with an error event. request names the inbound type that failed.
func SendError(hub *Hub, client *Client, request string, err error) error {
	return hub.Send(client, EventError, ErrorPayload{
		Error:   apperr.MessageOf(err),
		Code:    strings.ToLower(string(apperr.CodeOf(err))),
		Request: request,
	})
}
