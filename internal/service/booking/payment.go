package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CaptureConfirmation is sent by the payment gateway once money has moved.
type CaptureConfirmation struct {
	BookingID     string             `json:"booking_id"`
	PaymentType   domain.PaymentType `json:"payment_type"`
	AmountCents   int64              `json:"amount_cents"`
	Currency      string             `json:"currency"`
	TransactionID string             `json:"transaction_id"`
	Method        string             `json:"method"`
	PayerID       string             `json:"payer_id"`
}

func (c CaptureConfirmation) validate() error {
	switch {
	case strings.TrimSpace(c.BookingID) == "":
		return domain.NewValidationError("booking_id", "is required")
	case strings.TrimSpace(c.TransactionID) == "":
		return domain.NewValidationError("transaction_id", "is required")
	case c.AmountCents <= 0:
		return domain.NewValidationError("amount_cents", "must be positive")
	case !c.PaymentType.Valid():
		return domain.NewValidationError("payment_type", "must be advance or final")
	}
	return nil
}

type CaptureResult struct {
	Booking           *domain.Booking
	Payment           *domain.Payment
	Duplicate         bool
	ContinuationToken string
}

// ContinuationIssuer produces the opaque token handed back to the gateway,
// typically a redirect URL.
type ContinuationIssuer interface {
	Issue(b domain.Booking, p domain.Payment) string
}

// RedirectIssuer fills {booking_id} and {payment_type} in a URL template.
type RedirectIssuer struct {
	Template string
}

func (r RedirectIssuer) Issue(b domain.Booking, p domain.Payment) string {
	return strings.NewReplacer("{booking_id}", b.ID, "{payment_type}", string(p.PaymentType)).Replace(r.Template)
}

type Quote struct {
	BookingID   string             `json:"booking_id"`
	ClientID    string             `json:"client_id"`
	PaymentType domain.PaymentType `json:"payment_type"`
	AmountCents int64              `json:"amount_cents"`
	Currency    string             `json:"currency"`
}

// Capture records a captured payment and advances the booking. A transaction
// id that is already stored returns the current state with Duplicate set.
func (s *BookingService) Capture(ctx context.Context, c CaptureConfirmation) (*CaptureResult, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	current, err := s.bookings.GetByID(ctx, c.BookingID)
	if err != nil {
		return nil, s.storeError("capture payment", c.BookingID, err)
	}

	result := &CaptureResult{}
	var becameBooked bool
	err = s.bookings.WithinArtistTx(ctx, current.ArtistID, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetForUpdate(ctx, c.BookingID)
		if err != nil {
			return err
		}

		existing, err := tx.PaymentByTransaction(ctx, c.TransactionID)
		switch {
		case err == nil:
			if existing.BookingID != b.ID {
				return domain.NewValidationError("transaction_id", "is recorded for another booking")
			}
			result.Booking, result.Payment, result.Duplicate = b, existing, true
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if c.PayerID != "" && c.PayerID != b.ClientID {
			return &domain.AuthorizationError{ActorID: c.PayerID, Reason: "payer is not the client of booking " + b.ID}
		}
		if b.ContractStatus != domain.ContractStatusSigned {
			return stateError(b, "capture a payment for", "contract must be signed")
		}

		payments, err := tx.PaymentsForBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := checkCapturable(b, c.PaymentType, payments); err != nil {
			return err
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		payment := &domain.Payment{
			ID:            uuid.NewString(),
			BookingID:     b.ID,
			ClientID:      b.ClientID,
			ArtistID:      b.ArtistID,
			AmountCents:   c.AmountCents,
			Currency:      s.currency(c.Currency, b),
			Method:        c.Method,
			PaymentType:   c.PaymentType,
			Status:        domain.PaymentStatusPaid,
			TransactionID: c.TransactionID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicateTransaction) {
				return domain.NewValidationError("transaction_id", "is recorded for another booking")
			}
			return err
		}

		b.PaymentIDs = append(b.PaymentIDs, payment.ID)
		if c.PaymentType == domain.PaymentTypeAdvance {
			becameBooked = b.Status != domain.BookingStatusBooked
			b.IsPaid = true
			b.Status = domain.BookingStatusBooked
		} else {
			b.IsFinalPaid = true
			b.Status = domain.BookingStatusCompleted
		}
		s.touch(b)
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		result.Booking, result.Payment = b, payment
		return nil
	})
	if err != nil {
		return nil, s.storeError("capture payment", c.BookingID, err)
	}

	if s.issuer != nil {
		result.ContinuationToken = s.issuer.Issue(*result.Booking, *result.Payment)
	}
	if result.Duplicate {
		s.logger.Info("duplicate capture ignored", zap.String("booking_id", c.BookingID), zap.String("transaction_id", c.TransactionID))
		return result, nil
	}

	n := s.notification(result.Booking, result.Booking.ArtistID, domain.NotificationPaymentReceived,
		fmt.Sprintf("The %s payment for %s was received.", c.PaymentType, eventLabel(result.Booking)))
	n.PaymentID = result.Payment.ID
	s.committed(result.Booking, n)

	if becameBooked && s.reminders != nil {
		booked := *result.Booking.Clone()
		s.dispatcher.Go("schedule reminder", func(ctx context.Context) error {
			return s.reminders.ScheduleReminder(ctx, booked)
		}, zap.String("booking_id", booked.ID))
	}
	return result, nil
}

func checkCapturable(b *domain.Booking, paymentType domain.PaymentType, payments []domain.Payment) error {
	if paymentType == domain.PaymentTypeAdvance {
		if b.Status != domain.BookingStatusAccepted && b.Status != domain.BookingStatusBooked {
			return stateError(b, "capture an advance for", "booking must be accepted or booked")
		}
		if b.IsPaid {
			return stateError(b, "capture an advance for", "advance already paid")
		}
		return nil
	}

	if b.Status != domain.BookingStatusBooked {
		return stateError(b, "capture the final payment for", "booking must be booked")
	}
	if !b.IsPaid {
		return stateError(b, "capture the final payment for", "advance not paid")
	}
	if b.WageCents-domain.PaidTotal(payments) <= 0 {
		return stateError(b, "capture the final payment for", "nothing left to pay")
	}
	return nil
}

// PaymentQuote is the amount the client owes for the given payment step.
func (s *BookingService) PaymentQuote(ctx context.Context, actor domain.Actor, bookingID string, paymentType domain.PaymentType) (*Quote, error) {
	if !paymentType.Valid() {
		return nil, domain.NewValidationError("payment_type", "must be advance or final")
	}

	b, err := s.GetBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actor, domain.PartyClient); err != nil {
		return nil, err
	}
	if b.ContractStatus != domain.ContractStatusSigned {
		return nil, stateError(b, "quote a payment for", "contract must be signed")
	}

	payments, err := s.ListPayments(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkCapturable(b, paymentType, payments); err != nil {
		return nil, err
	}

	amount := b.AdvanceCents
	if paymentType == domain.PaymentTypeFinal {
		amount = b.WageCents - domain.PaidTotal(payments)
	}
	if amount <= 0 {
		return nil, stateError(b, "quote a payment for", "nothing to pay")
	}
	return &Quote{
		BookingID:   b.ID,
		ClientID:    b.ClientID,
		PaymentType: paymentType,
		AmountCents: amount,
		Currency:    s.currency("", b),
	}, nil
}

func (s *BookingService) currency(requested string, b *domain.Booking) string {
	switch {
	case requested != "":
		return strings.ToLower(requested)
	case b.Currency != "":
		return b.Currency
	}
	return s.policy.DefaultCurrency
}
