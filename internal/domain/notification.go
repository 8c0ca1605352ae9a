package domain

import "time"

type NotificationType string

const (
	NotificationBookingRequested      NotificationType = "booking_requested"
	NotificationBookingAccepted       NotificationType = "booking_accepted"
	NotificationBookingRejected       NotificationType = "booking_rejected"
	NotificationContractDrafted       NotificationType = "contract_drafted"
	NotificationContractSigned        NotificationType = "contract_signed"
	NotificationPaymentReceived       NotificationType = "payment_received"
	NotificationCancellationRequested NotificationType = "cancellation_requested"
	NotificationCancellationApproved  NotificationType = "cancellation_approved"
	NotificationBookingCancelled      NotificationType = "booking_cancelled"
	NotificationEventReminder         NotificationType = "event_reminder"
)

type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Message   string
	IsRead    bool
	BookingID string
	PaymentID string
	CreatedAt time.Time
}
