// Package realtime pushes dispatch outcomes and store changes to
// connected dashboards over WebSocket.
package realtime

import "encoding/json"

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	MessageTypeConnected MessageType = "connected"
	MessageTypeEvent     MessageType = "event"
	MessageTypeError     MessageType = "error"
	MessageTypePong      MessageType = "pong"
)

// Topics clients can subscribe to.
const (
	TopicWebhooks   = "webhooks"
	TopicIncoming   = "incoming"
	TopicDispatches = "dispatches"
	TopicUIState    = "uistate"
)

// Message is the base WebSocket message structure.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload for subscribe and unsubscribe messages.
type SubscribePayload struct {
	Topics []string `json:"topics"`
}

// ConnectedPayload is the payload for connected messages.
type ConnectedPayload struct {
	ClientID string   `json:"client_id"`
	Topics   []string `json:"topics"`
}

// Event is a server-pushed change notification.
type Event struct {
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode represents an error code for WebSocket errors.
type ErrorCode string

const (
	ErrorCodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
	ErrorCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	ErrorCodeUnknownTopic   ErrorCode = "UNKNOWN_TOPIC"
)

func validTopic(topic string) bool {
	switch topic {
	case TopicWebhooks, TopicIncoming, TopicDispatches, TopicUIState:
		return true
	}
	return false
}
