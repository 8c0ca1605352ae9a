package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/artbooking/config"
	"github.com/Domenick1991/artbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores bundles the repositories selected by database.driver.
type Stores struct {
	Bookings      repository.BookingRepository
	Notifications repository.NotificationRepository

	pool *pgxpool.Pool
}

// OpenStores connects to Postgres, or builds in-process stores when the
// driver is "memory".
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	if cfg.InMemory() {
		return &Stores{
			Bookings:      repository.NewMemoryBookingRepository(),
			Notifications: repository.NewMemoryNotificationRepository(),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Stores{
		Bookings:      repository.NewBookingRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		pool:          pool,
	}, nil
}

func (s *Stores) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
