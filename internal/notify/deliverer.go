package notify

import (
	"context"
	"fmt"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/kafka"
	"github.com/Domenick1991/artbooking/internal/repository"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, n domain.Notification) error
}

// Deliverer persists a notification for the in-app inbox and then mails it.
// Mail failures are logged since the inbox copy is already durable.
type Deliverer struct {
	store  repository.NotificationRepository
	mailer Mailer
	logger *zap.Logger
}

func NewDeliverer(store repository.NotificationRepository, mailer Mailer, logger *zap.Logger) *Deliverer {
	return &Deliverer{store: store, mailer: mailer, logger: logger}
}

func (d *Deliverer) Emit(ctx context.Context, n domain.Notification) error {
	if err := d.store.Insert(ctx, &n); err != nil {
		return fmt.Errorf("store notification %s: %w", n.ID, err)
	}
	if d.mailer != nil {
		if err := d.mailer.Send(ctx, n); err != nil {
			d.logger.Warn("failed to mail notification", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return nil
}

// HandleMessage is the Kafka handler used by the worker.
func (d *Deliverer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.DecodeNotificationEvent(msg)
	if err != nil {
		return fmt.Errorf("%v: %w", err, kafka.ErrSkipMessage)
	}
	return d.Emit(ctx, event.Notification())
}
