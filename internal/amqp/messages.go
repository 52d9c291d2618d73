package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mmms/internal/notify"
)

// MessageVersion is the schema version of NotificationMessage.
const MessageVersion = 1

// NotificationMessage carries one notification through the queue.
type NotificationMessage struct {
	Version      int                 `json:"version"`
	ID           string              `json:"id"`
	Notification notify.Notification `json:"notification"`
	PublishedAt  time.Time           `json:"publishedAt"`
}

// NewNotificationMessage wraps n with a fresh message id.
func NewNotificationMessage(n notify.Notification) *NotificationMessage {
	return &NotificationMessage{
		Version:      MessageVersion,
		ID:           uuid.NewString(),
		Notification: n,
		PublishedAt:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes and validates a message body.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode notification message: %w", err)
	}
	if msg.Version != MessageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if err := msg.Notification.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}
	return &msg, nil
}
