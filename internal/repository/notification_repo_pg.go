package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationColumns = `id, user_id, type, message, is_read, booking_id, payment_id, created_at`

type PGNotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) NotificationRepository {
	return &PGNotificationRepository{db: db}
}

func (r *PGNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	// Redelivered events carry the same id.
	_, err := r.db.Exec(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.Type, n.Message, n.IsRead, n.BookingID, n.PaymentID, n.CreatedAt)
	return err
}

func (r *PGNotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (r *PGNotificationRepository) MarkRead(ctx context.Context, id, ownerID string) (*domain.Notification, error) {
	row := r.db.QueryRow(ctx, `UPDATE notifications SET is_read=true
		WHERE id=$1 AND user_id=$2
		RETURNING `+notificationColumns, id, ownerID)
	return scanNotification(row)
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.BookingID, &n.PaymentID, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

var _ NotificationRepository = (*PGNotificationRepository)(nil)
