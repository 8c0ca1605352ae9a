package booking

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"go.uber.org/zap"
)

// Notifier delivers a notification to its user. Delivery is best effort.
type Notifier interface {
	Emit(ctx context.Context, n domain.Notification) error
}

// ReminderScheduler arranges a reminder ahead of a booked event.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, b domain.Booking) error
}

// Dispatcher runs side effects after a transition has committed. Each call
// gets its own goroutine and a bounded context detached from the request,
// and failures are only logged.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifier: notifier, logger: logger, timeout: timeout}
}

func (d *Dispatcher) Notify(notifications ...domain.Notification) {
	if d.notifier == nil {
		return
	}
	for _, n := range notifications {
		d.Go("emit notification", func(ctx context.Context) error {
			return d.notifier.Emit(ctx, n)
		}, zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.String("booking_id", n.BookingID))
	}
}

// Go runs fn in the background unless the dispatcher has been closed.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error, fields ...zap.Field) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, dropping side effect", append(fields, zap.String("name", name))...)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		if err := fn(ctx); err != nil {
			d.logger.Error("side effect failed", append(fields, zap.String("name", name), zap.Error(err))...)
		}
	}()
}

// Wait blocks until every side effect started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting new side effects and drains the in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
