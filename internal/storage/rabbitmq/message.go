package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
)

// Message is the body published for a notification. The consumer reloads the
// notification itself from storage, so only the routing facts travel on the wire.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Attempts    int       `json:"attempts"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// NewMessage builds the queue message for n.
func NewMessage(n *model.Notification) Message {
	return Message{ID: n.ID, Type: n.Type, Attempts: n.Attempts, ScheduledAt: n.ScheduledAt}
}

// Encode serializes the message body.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a message body and rejects messages without an id.
func DecodeMessage(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("rabbitmq: malformed message: %w", err)
	}
	if m.ID == uuid.Nil {
		return Message{}, fmt.Errorf("rabbitmq: message has no notification id")
	}
	return m, nil
}
