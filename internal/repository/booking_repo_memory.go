package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
)

// MemoryBookingRepository keeps bookings and payments in process memory.
// Writes made inside WithinArtistTx are staged and copied into the shared
// maps only when the closure succeeds. Transaction ids are reserved across
// all artists at insert time, so two open transactions can never both record
// the same one.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
	payments map[string]*domain.Payment
	txnIDs   map[string]struct{}

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]*domain.Booking),
		payments: make(map[string]*domain.Payment),
		txnIDs:   make(map[string]struct{}),
		locks:    make(map[string]chan struct{}),
	}
}

func (r *MemoryBookingRepository) artistLock(artistID string) chan struct{} {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[artistID]
	if !ok {
		l = make(chan struct{}, 1)
		r.locks[artistID] = l
	}
	return l
}

func (r *MemoryBookingRepository) WithinArtistTx(ctx context.Context, artistID string, fn func(ctx context.Context, tx Tx) error) error {
	lock := r.artistLock(artistID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("lock artist %s: %w", artistID, ctx.Err())
	}
	defer func() { <-lock }()

	tx := &memTx{
		repo:     r,
		bookings: make(map[string]*domain.Booking),
		payments: make(map[string]*domain.Payment),
	}
	if err := fn(ctx, tx); err != nil {
		tx.release()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.release()
		return fmt.Errorf("commit tx: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range tx.bookings {
		r.bookings[id] = b
	}
	for id, p := range tx.payments {
		r.payments[id] = p
	}
	return nil
}

func (r *MemoryBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryBookingRepository) ListForParty(ctx context.Context, actorID string, party domain.Party) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookings := make([]domain.Booking, 0)
	for _, b := range r.bookings {
		switch {
		case party == domain.PartyAdmin,
			party == domain.PartyClient && b.ClientID == actorID,
			party == domain.PartyArtist && b.ArtistID == actorID:
			bookings = append(bookings, *b.Clone())
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

func (r *MemoryBookingRepository) ListPayments(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paymentsFor(bookingID, nil), nil
}

// paymentsFor merges committed payments with the staged ones. Callers hold mu.
func (r *MemoryBookingRepository) paymentsFor(bookingID string, staged map[string]*domain.Payment) []domain.Payment {
	payments := make([]domain.Payment, 0)
	for id, p := range r.payments {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		if p.BookingID == bookingID {
			payments = append(payments, *p)
		}
	}
	for _, p := range staged {
		if p.BookingID == bookingID {
			payments = append(payments, *p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments
}

type memTx struct {
	repo     *MemoryBookingRepository
	bookings map[string]*domain.Booking
	payments map[string]*domain.Payment
	reserved []string
}

// release frees the transaction ids this tx reserved but never committed.
func (t *memTx) release() {
	if len(t.reserved) == 0 {
		return
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, id := range t.reserved {
		delete(t.repo.txnIDs, id)
	}
	t.reserved = nil
}

func (t *memTx) booking(id string) (*domain.Booking, bool) {
	if b, ok := t.bookings[id]; ok {
		return b, true
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	b, ok := t.repo.bookings[id]
	return b, ok
}

func (t *memTx) GetForUpdate(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := t.booking(bookingID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (t *memTx) ActiveForArtist(ctx context.Context, artistID, excludeID string) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]*domain.Booking)
	t.repo.mu.RLock()
	for id, b := range t.repo.bookings {
		if b.ArtistID == artistID {
			merged[id] = b
		}
	}
	t.repo.mu.RUnlock()
	for id, b := range t.bookings {
		if b.ArtistID == artistID {
			merged[id] = b
		}
	}

	active := make([]domain.Booking, 0)
	for id, b := range merged {
		if id != excludeID && b.Status.BlocksCalendar() {
			active = append(active, *b.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartTime.Before(active[j].StartTime)
	})
	return active, nil
}

func (t *memTx) InsertBooking(ctx context.Context, booking *domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := t.booking(booking.ID); exists {
		return fmt.Errorf("booking %s already exists", booking.ID)
	}
	t.bookings[booking.ID] = booking.Clone()
	return nil
}

func (t *memTx) UpdateBooking(ctx context.Context, booking *domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := t.booking(booking.ID); !exists {
		return domain.ErrNotFound
	}
	t.bookings[booking.ID] = booking.Clone()
	return nil
}

func (t *memTx) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id := payment.TransactionID; id != "" {
		t.repo.mu.Lock()
		_, taken := t.repo.txnIDs[id]
		if !taken {
			t.repo.txnIDs[id] = struct{}{}
		}
		t.repo.mu.Unlock()
		if taken {
			return ErrDuplicateTransaction
		}
		t.reserved = append(t.reserved, id)
	}
	p := *payment
	t.payments[p.ID] = &p
	return nil
}

func (t *memTx) PaymentByTransaction(ctx context.Context, transactionID string) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range t.payments {
		if p.TransactionID == transactionID {
			found := *p
			return &found, nil
		}
	}

	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for _, p := range t.repo.payments {
		if p.TransactionID == transactionID {
			found := *p
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *memTx) PaymentsForBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return t.repo.paymentsFor(bookingID, t.payments), nil
}

func (t *memTx) RefundPaid(ctx context.Context, bookingID string, at time.Time) ([]domain.Payment, error) {
	payments, err := t.PaymentsForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	refunded := make([]domain.Payment, 0)
	for _, p := range payments {
		if p.Status != domain.PaymentStatusPaid {
			continue
		}
		refundedAt := at
		p.Status = domain.PaymentStatusRefunded
		p.RefundedAt = &refundedAt
		p.UpdatedAt = at
		staged := p
		t.payments[p.ID] = &staged
		refunded = append(refunded, p)
	}
	return refunded, nil
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
var _ Tx = (*memTx)(nil)
