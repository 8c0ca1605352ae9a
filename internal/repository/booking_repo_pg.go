package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, client_id, artist_id, event_date, start_time, end_time,
	location, contact_name, contact_email, contact_phone, event_type, event_details, notes,
	status, cancelled_by, contract_status, client_signature, artist_signature,
	client_signed_at, artist_signed_at, contract_url, wage_cents, advance_cents, currency,
	is_paid, is_final_paid, payment_ids, last_action_time, created_at, updated_at`

const paymentColumns = `id, booking_id, client_id, artist_id, amount_cents, currency, method,
	payment_type, status, transaction_id, created_at, updated_at, refunded_at`

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) WithinArtistTx(ctx context.Context, artistID string, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes every check-and-write touching this artist's calendar.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, artistID); err != nil {
		return fmt.Errorf("lock artist %s: %w", artistID, err)
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

func (r *PGBookingRepository) ListForParty(ctx context.Context, actorID string, party domain.Party) ([]domain.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch party {
	case domain.PartyClient:
		rows, err = r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE client_id=$1 ORDER BY created_at DESC`, actorID)
	case domain.PartyArtist:
		rows, err = r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE artist_id=$1 ORDER BY created_at DESC`, actorID)
	case domain.PartyAdmin:
		rows, err = r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
	default:
		return nil, fmt.Errorf("unknown party %q", party)
	}
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PGBookingRepository) ListPayments(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id=$1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetForUpdate(ctx context.Context, bookingID string) (*domain.Booking, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, bookingID)
	return scanBooking(row)
}

func (t *pgTx) ActiveForArtist(ctx context.Context, artistID, excludeID string) ([]domain.Booking, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE artist_id=$1 AND id<>$2 AND status IN ($3, $4)
		ORDER BY start_time`,
		artistID, excludeID, domain.BookingStatusAccepted, domain.BookingStatusBooked)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (t *pgTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		b.ID, b.ClientID, b.ArtistID, b.EventDate, b.StartTime, b.EndTime,
		b.Location, b.ContactName, b.ContactEmail, b.ContactPhone, b.EventType, b.EventDetails, b.Notes,
		b.Status, b.CancelledBy, b.ContractStatus, b.ClientSignature, b.ArtistSignature,
		b.ClientSignedAt, b.ArtistSignedAt, b.ContractURL, b.WageCents, b.AdvanceCents, b.Currency,
		b.IsPaid, b.IsFinalPaid, paymentIDs(b), b.LastActionTime, b.CreatedAt, b.UpdatedAt)
	return err
}

func (t *pgTx) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE bookings SET
		status=$2, cancelled_by=$3, contract_status=$4, client_signature=$5, artist_signature=$6,
		client_signed_at=$7, artist_signed_at=$8, contract_url=$9, wage_cents=$10, advance_cents=$11,
		currency=$12, is_paid=$13, is_final_paid=$14, payment_ids=$15, last_action_time=$16, updated_at=$17
		WHERE id=$1`,
		b.ID, b.Status, b.CancelledBy, b.ContractStatus, b.ClientSignature, b.ArtistSignature,
		b.ClientSignedAt, b.ArtistSignedAt, b.ContractURL, b.WageCents, b.AdvanceCents,
		b.Currency, b.IsPaid, b.IsFinalPaid, paymentIDs(b), b.LastActionTime, b.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.BookingID, p.ClientID, p.ArtistID, p.AmountCents, p.Currency, p.Method,
		p.PaymentType, p.Status, p.TransactionID, p.CreatedAt, p.UpdatedAt, p.RefundedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateTransaction
	}
	return err
}

func (t *pgTx) PaymentByTransaction(ctx context.Context, transactionID string) (*domain.Payment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id=$1`, transactionID)
	return scanPayment(row)
}

func (t *pgTx) PaymentsForBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id=$1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (t *pgTx) RefundPaid(ctx context.Context, bookingID string, at time.Time) ([]domain.Payment, error) {
	rows, err := t.tx.Query(ctx, `UPDATE payments SET status=$2, refunded_at=$4, updated_at=$4
		WHERE booking_id=$1 AND status=$3
		RETURNING `+paymentColumns,
		bookingID, domain.PaymentStatusRefunded, domain.PaymentStatusPaid, at)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func paymentIDs(b *domain.Booking) []string {
	if b.PaymentIDs == nil {
		return []string{}
	}
	return b.PaymentIDs
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.ClientID, &b.ArtistID, &b.EventDate, &b.StartTime, &b.EndTime,
		&b.Location, &b.ContactName, &b.ContactEmail, &b.ContactPhone, &b.EventType, &b.EventDetails, &b.Notes,
		&b.Status, &b.CancelledBy, &b.ContractStatus, &b.ClientSignature, &b.ArtistSignature,
		&b.ClientSignedAt, &b.ArtistSignedAt, &b.ContractURL, &b.WageCents, &b.AdvanceCents, &b.Currency,
		&b.IsPaid, &b.IsFinalPaid, &b.PaymentIDs, &b.LastActionTime, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	if err := row.Scan(&p.ID, &p.BookingID, &p.ClientID, &p.ArtistID, &p.AmountCents, &p.Currency, &p.Method,
		&p.PaymentType, &p.Status, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt, &p.RefundedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
var _ Tx = (*pgTx)(nil)
