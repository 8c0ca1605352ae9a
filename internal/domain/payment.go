package domain

import "time"

type PaymentType string

const (
	PaymentTypeAdvance PaymentType = "advance"
	PaymentTypeFinal   PaymentType = "final"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeAdvance || t == PaymentTypeFinal
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Payment struct {
	ID            string
	BookingID     string
	ClientID      string
	ArtistID      string
	AmountCents   int64
	Currency      string
	Method        string
	PaymentType   PaymentType
	Status        PaymentStatus
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RefundedAt    *time.Time
}

// PaidTotal sums the amounts of payments still in the paid state.
func PaidTotal(payments []Payment) int64 {
	var total int64
	for _, p := range payments {
		if p.Status == PaymentStatusPaid {
			total += p.AmountCents
		}
	}
	return total
}
