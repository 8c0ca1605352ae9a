package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/segmentio/kafka-go"
)

// NotificationEvent is the wire form of a notification on the
// notifications topic.
type NotificationEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	BookingID string    `json:"booking_id,omitempty"`
	PaymentID string    `json:"payment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNotificationEvent(n domain.Notification) NotificationEvent {
	return NotificationEvent{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Message:   n.Message,
		BookingID: n.BookingID,
		PaymentID: n.PaymentID,
		CreatedAt: n.CreatedAt,
	}
}

func (e NotificationEvent) Notification() domain.Notification {
	return domain.Notification{
		ID:        e.ID,
		UserID:    e.UserID,
		Type:      domain.NotificationType(e.Type),
		Message:   e.Message,
		BookingID: e.BookingID,
		PaymentID: e.PaymentID,
		CreatedAt: e.CreatedAt,
	}
}

func DecodeNotificationEvent(msg kafka.Message) (NotificationEvent, error) {
	var event NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return NotificationEvent{}, fmt.Errorf("failed to decode notification event: %w", err)
	}
	if event.ID == "" || event.UserID == "" {
		return NotificationEvent{}, fmt.Errorf("notification event missing id or user_id")
	}
	return event, nil
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// NotificationEmitter publishes notifications keyed by user so one user's
// events stay ordered on a partition.
type NotificationEmitter struct {
	publisher Publisher
	topic     string
}

func NewNotificationEmitter(publisher Publisher, topic string) *NotificationEmitter {
	return &NotificationEmitter{publisher: publisher, topic: topic}
}

func (e *NotificationEmitter) Emit(ctx context.Context, n domain.Notification) error {
	return e.publisher.Publish(ctx, e.topic, n.UserID, NewNotificationEvent(n))
}
