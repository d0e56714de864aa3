package ws

import (
	"reflect"
)

var typeRegistry = map[string]reflect.Type{}

func init() {
	// Register all message types
	RegisterType(&MessagePing{})
	RegisterType(&MessagePong{})
	RegisterType(&MessageSend{})
	RegisterType(&MessageMarkRead{})
	RegisterType(&MessageGetConversations{})
	RegisterType(&MessageGetMessages{})
	RegisterType(&MessageOpenConversation{})
	RegisterType(&MessageUnreadTotal{})
}

func RegisterType(msg Message) {
	typeRegistry[msg.GetType()] = reflect.TypeOf(msg).Elem()
}

// GetTypeRegistry returns the type registry for testing
func GetTypeRegistry() map[string]reflect.Type {
	return typeRegistry
}
