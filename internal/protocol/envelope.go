// Package protocol defines the wire formats spoken by the daemon: the
// discriminated envelope exchanged with the backend message source, and the
// event/op frames exchanged with the injected page script over the bridge.
package protocol

import "encoding/json"

// Envelope types used by the backend message source.
const (
	TypeConnected   = "connected"
	TypeChatMessage = "chat_message"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Envelope is the discriminated message exchanged with the backend source.
// Application payloads are forwarded to consumers unchanged; ping/pong are
// liveness-only and never leave the connector.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Liveness reports whether the envelope is a ping or pong frame.
func (e Envelope) Liveness() bool {
	return e.Type == TypePing || e.Type == TypePong
}

// Ping returns a liveness ping envelope.
func Ping(now int64) Envelope {
	return Envelope{Type: TypePing, Timestamp: now}
}

// Pong returns the reply to an inbound ping.
func Pong(now int64) Envelope {
	return Envelope{Type: TypePong, Timestamp: now}
}
