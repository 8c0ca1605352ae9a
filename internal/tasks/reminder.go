package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeEventReminder = "reminder:event"

type ReminderPayload struct {
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	StartTime time.Time `json:"start_time"`
}

func NewReminderTask(payload ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeEventReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(fmt.Sprintf("reminder:%s:%s", payload.BookingID, payload.UserID)),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler enqueues one reminder per party, lead before the event starts.
type Scheduler struct {
	client Enqueuer
	lead   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewScheduler(client Enqueuer, lead time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{client: client, lead: lead, now: time.Now, logger: logger}
}

func (s *Scheduler) ScheduleReminder(ctx context.Context, b domain.Booking) error {
	now := s.now()
	if !b.StartTime.After(now) {
		return nil
	}
	fireAt := b.StartTime.Add(-s.lead)
	if fireAt.Before(now) {
		fireAt = now
	}

	for _, userID := range []string{b.ClientID, b.ArtistID} {
		task, opts, err := NewReminderTask(ReminderPayload{
			BookingID: b.ID,
			UserID:    userID,
			EventType: b.EventType,
			StartTime: b.StartTime,
		}, fireAt)
		if err != nil {
			return err
		}

		info, err := s.client.EnqueueContext(ctx, task, opts...)
		switch {
		case errors.Is(err, asynq.ErrTaskIDConflict):
			continue
		case err != nil:
			return fmt.Errorf("enqueue reminder for %s: %w", userID, err)
		}
		s.logger.Info("reminder scheduled", zap.String("task_id", info.ID), zap.Time("fire_at", fireAt))
	}
	return nil
}

type Notifier interface {
	Emit(ctx context.Context, n domain.Notification) error
}

// BookingLookup reads the current state of a booking.
type BookingLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
}

// NewReminderHandler turns a due reminder task into an event_reminder
// notification. Reminders for bookings that were cancelled, rejected or
// removed complete without a notification. A returned error makes asynq
// retry the task.
func NewReminderHandler(notifier Notifier, bookings BookingLookup, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid reminder payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		b, err := bookings.GetByID(ctx, p.BookingID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			logger.Info("reminder dropped, booking is gone", zap.String("booking_id", p.BookingID))
			return nil
		case err != nil:
			return fmt.Errorf("load booking %s: %w", p.BookingID, err)
		case !remindable(b.Status):
			logger.Info("reminder dropped",
				zap.String("booking_id", p.BookingID), zap.String("status", string(b.Status)))
			return nil
		}
		p.StartTime = b.StartTime

		label := p.StartTime.Format("Jan 2, 2006 15:04 MST")
		if p.EventType != "" {
			label = p.EventType + " on " + label
		}
		return notifier.Emit(ctx, domain.Notification{
			ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(task.Type()+":"+p.BookingID+":"+p.UserID)).String(),
			UserID:    p.UserID,
			Type:      domain.NotificationEventReminder,
			Message:   fmt.Sprintf("Reminder: %s is coming up.", label),
			BookingID: p.BookingID,
			CreatedAt: time.Now().UTC(),
		})
	}
}

// remindable reports whether the event still takes place.
func remindable(status domain.BookingStatus) bool {
	switch status {
	case domain.BookingStatusCancelled, domain.BookingStatusRejected:
		return false
	}
	return true
}
