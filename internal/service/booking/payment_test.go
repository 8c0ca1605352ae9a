package booking

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReminderScheduler struct {
	mock.Mock
}

func (m *MockReminderScheduler) ScheduleReminder(ctx context.Context, b domain.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func signedBooking(t *testing.T, f *fixture) *domain.Booking {
	t.Helper()
	ctx := context.Background()

	b := f.accepted(t, at(10, 0), at(11, 0))
	_, err := f.svc.DraftContract(ctx, client, b.ID, DraftContractInput{WageCents: 100000, ClientSignature: "client-sig"})
	require.NoError(t, err)
	b, err = f.svc.SignContract(ctx, artist, b.ID, SignContractInput{ArtistSignature: "artist-sig"})
	require.NoError(t, err)
	return b
}

func completedBooking(t *testing.T, f *fixture) *domain.Booking {
	t.Helper()
	ctx := context.Background()

	b := signedBooking(t, f)
	_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "adv-1"})
	require.NoError(t, err)
	res, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeFinal, AmountCents: 70000, TransactionID: "fin-1"})
	require.NoError(t, err)
	return res.Booking
}

func TestBookingService_Capture_AdvanceIsIdempotent(t *testing.T) {
	f := newFixture(t, WithContinuationIssuer(RedirectIssuer{Template: "https://app.test/bookings/{booking_id}/{payment_type}"}))
	ctx := context.Background()
	b := signedBooking(t, f)

	confirmation := CaptureConfirmation{
		BookingID:     b.ID,
		PaymentType:   domain.PaymentTypeAdvance,
		AmountCents:   30000,
		TransactionID: "T1",
		PayerID:       client.ID,
		Method:        "card",
	}

	first, err := f.svc.Capture(ctx, confirmation)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, domain.BookingStatusBooked, first.Booking.Status)
	assert.True(t, first.Booking.IsPaid)
	assert.Equal(t, []string{first.Payment.ID}, first.Booking.PaymentIDs)
	assert.Equal(t, domain.PaymentStatusPaid, first.Payment.Status)
	assert.Equal(t, "usd", first.Payment.Currency)
	assert.Equal(t, "https://app.test/bookings/"+b.ID+"/advance", first.ContinuationToken)

	second, err := f.svc.Capture(ctx, confirmation)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, first.Booking.LastActionTime, second.Booking.LastActionTime)
	assert.Equal(t, first.ContinuationToken, second.ContinuationToken)

	payments, err := f.svc.ListPayments(ctx, client, b.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	f.svc.dispatcher.Wait()
	assert.Len(t, f.notifier.emittedOfType(domain.NotificationPaymentReceived), 1)
}

func TestBookingService_Capture_FinalCompletes(t *testing.T) {
	f := newFixture(t)

	b := completedBooking(t, f)

	assert.Equal(t, domain.BookingStatusCompleted, b.Status)
	assert.True(t, b.IsPaid)
	assert.True(t, b.IsFinalPaid)
	assert.Len(t, b.PaymentIDs, 2)
}

func TestBookingService_Capture_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t)
		testCases := []struct {
			name  string
			input CaptureConfirmation
		}{
			{name: "Missing booking", input: CaptureConfirmation{PaymentType: domain.PaymentTypeAdvance, AmountCents: 1, TransactionID: "t"}},
			{name: "Missing transaction", input: CaptureConfirmation{BookingID: "b", PaymentType: domain.PaymentTypeAdvance, AmountCents: 1}},
			{name: "Zero amount", input: CaptureConfirmation{BookingID: "b", PaymentType: domain.PaymentTypeAdvance, TransactionID: "t"}},
			{name: "Unknown type", input: CaptureConfirmation{BookingID: "b", PaymentType: "deposit", AmountCents: 1, TransactionID: "t"}},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.svc.Capture(ctx, tc.input)
				var validation *domain.ValidationError
				assert.ErrorAs(t, err, &validation)
			})
		}
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: "nope", PaymentType: domain.PaymentTypeAdvance, AmountCents: 1, TransactionID: "t"})
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("Unsigned contract", func(t *testing.T) {
		f := newFixture(t)
		b := f.accepted(t, at(10, 0), at(11, 0))

		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 100, TransactionID: "t"})

		var stateErr *domain.StateError
		require.ErrorAs(t, err, &stateErr)
		payments, _ := f.repo.ListPayments(ctx, b.ID)
		assert.Empty(t, payments)
	})

	t.Run("Final before advance", func(t *testing.T) {
		f := newFixture(t)
		b := signedBooking(t, f)

		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeFinal, AmountCents: 100, TransactionID: "t"})

		var stateErr *domain.StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.BookingStatusAccepted, stateErr.Current)
	})

	t.Run("Second advance", func(t *testing.T) {
		f := newFixture(t)
		b := signedBooking(t, f)
		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "a1"})
		require.NoError(t, err)

		_, err = f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "a2"})

		var stateErr *domain.StateError
		assert.ErrorAs(t, err, &stateErr)
	})

	t.Run("Nothing left to pay", func(t *testing.T) {
		f := newFixture(t)
		b := signedBooking(t, f)
		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 100000, TransactionID: "a1"})
		require.NoError(t, err)

		_, err = f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeFinal, AmountCents: 1, TransactionID: "f1"})

		var stateErr *domain.StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Contains(t, err.Error(), "nothing left to pay")
	})

	t.Run("Wrong payer", func(t *testing.T) {
		f := newFixture(t)
		b := signedBooking(t, f)

		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 100, TransactionID: "t", PayerID: client2.ID})

		var authErr *domain.AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("Transaction reused for another booking", func(t *testing.T) {
		f := newFixture(t)
		b := signedBooking(t, f)
		_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 100, TransactionID: "shared"})
		require.NoError(t, err)

		other := f.create(t, client2, at(16, 0), at(17, 0))
		_, err = f.svc.Capture(ctx, CaptureConfirmation{BookingID: other.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 100, TransactionID: "shared"})

		var validation *domain.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestBookingService_Capture_SchedulesReminderOnce(t *testing.T) {
	reminders := &MockReminderScheduler{}
	reminders.On("ScheduleReminder", mock.Anything, mock.AnythingOfType("domain.Booking")).Return(nil).Once()
	f := newFixture(t, WithReminders(reminders))
	ctx := context.Background()
	b := signedBooking(t, f)

	_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "a1"})
	require.NoError(t, err)
	_, err = f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "a1"})
	require.NoError(t, err)

	f.svc.dispatcher.Wait()
	reminders.AssertExpectations(t)
	reminders.AssertNumberOfCalls(t, "ScheduleReminder", 1)
}

func TestBookingService_CancellationRefundsPaidPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := signedBooking(t, f)
	_, err := f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "a1"})
	require.NoError(t, err)

	_, err = f.svc.RequestCancellation(ctx, client, b.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	cancelled, err := f.svc.ApproveCancellation(ctx, artist, b.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	payments, err := f.svc.ListPayments(ctx, client, b.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusRefunded, payments[0].Status)
	require.NotNil(t, payments[0].RefundedAt)
}

func TestBookingService_PaymentQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := signedBooking(t, f)

	quote, err := f.svc.PaymentQuote(ctx, client, b.ID, domain.PaymentTypeAdvance)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), quote.AmountCents)
	assert.Equal(t, "usd", quote.Currency)

	_, err = f.svc.PaymentQuote(ctx, artist, b.ID, domain.PaymentTypeAdvance)
	var authErr *domain.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	_, err = f.svc.PaymentQuote(ctx, client, b.ID, domain.PaymentTypeFinal)
	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr)

	_, err = f.svc.Capture(ctx, CaptureConfirmation{BookingID: b.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, TransactionID: "a1"})
	require.NoError(t, err)

	quote, err = f.svc.PaymentQuote(ctx, client, b.ID, domain.PaymentTypeFinal)
	require.NoError(t, err)
	assert.Equal(t, int64(70000), quote.AmountCents)
}
