package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
)

// ErrDuplicateTransaction is returned when a payment with the same
// transaction id is already stored.
var ErrDuplicateTransaction = errors.New("duplicate transaction id")

// Tx is the read-check-write surface available inside one atomic unit of
// work. Nothing written through it is visible to others until the closure
// passed to WithinArtistTx returns nil.
type Tx interface {
	GetForUpdate(ctx context.Context, bookingID string) (*domain.Booking, error)
	ActiveForArtist(ctx context.Context, artistID, excludeID string) ([]domain.Booking, error)
	InsertBooking(ctx context.Context, booking *domain.Booking) error
	UpdateBooking(ctx context.Context, booking *domain.Booking) error
	InsertPayment(ctx context.Context, payment *domain.Payment) error
	PaymentByTransaction(ctx context.Context, transactionID string) (*domain.Payment, error)
	PaymentsForBooking(ctx context.Context, bookingID string) ([]domain.Payment, error)
	RefundPaid(ctx context.Context, bookingID string, at time.Time) ([]domain.Payment, error)
}

type BookingRepository interface {
	// WithinArtistTx runs fn inside a transaction that holds the artist's
	// lock for its whole duration. Any error from fn, or expiry of ctx,
	// discards every write made through tx.
	WithinArtistTx(ctx context.Context, artistID string, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	ListForParty(ctx context.Context, actorID string, party domain.Party) ([]domain.Booking, error)
	ListPayments(ctx context.Context, bookingID string) ([]domain.Payment, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, ownerID string) (*domain.Notification, error)
}
