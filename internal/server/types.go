// Package server defines the realtime wire envelope and the helpers shared
// by client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Event names carried in Envelope.Event.
const (
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventChatHistory = "chatHistory"
	EventMessage     = "message"
)

// Envelope is the JSON frame exchanged over the WebSocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the data of a sendMessage event.
type SendMessagePayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// encodeEvent renders an outbound frame.
func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: event, Data: data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
