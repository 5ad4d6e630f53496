package notify

import (
	"encoding/json"
	"time"
)

// Message types pushed to the browser
const (
	TypeNotification = "notification"
	TypeReload       = "reload"
	TypeState        = "state"
)

// Message is the JSON shape sent over the notification websocket
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a message with the current time
func NewMessage(typ string, data any) Message {
	return Message{Type: typ, Data: data, Timestamp: time.Now()}
}

// Marshal encodes the message, filling in a missing timestamp
func (m Message) Marshal() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}
