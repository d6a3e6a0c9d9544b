// Package hub fans renderer updates out to websocket clients. Each client
// holds at most one pending message: a newer broadcast replaces an unsent
// one, so a slow client skips frames instead of falling behind.
package hub

// Message is a pre-encoded JSON document broadcast to clients as a text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}
