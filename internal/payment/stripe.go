package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrIgnoredEvent marks webhook events that do not capture money.
var ErrIgnoredEvent = errors.New("ignored stripe event")

const (
	metaBookingID   = "booking_id"
	metaPaymentType = "payment_type"
	metaClientID    = "client_id"
)

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// WebhookCapture is a verified capture together with its Stripe event id.
type WebhookCapture struct {
	EventID      string
	Confirmation booking.CaptureConfirmation
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// CreateIntent opens a PaymentIntent for a quote. The booking and payment
// step travel in metadata and come back on the webhook.
func (g *StripeGateway) CreateIntent(ctx context.Context, q booking.Quote) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(q.AmountCents),
		Currency: stripe.String(q.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metaBookingID, q.BookingID)
	params.AddMetadata(metaPaymentType, string(q.PaymentType))
	params.AddMetadata(metaClientID, q.ClientID)
	params.SetIdempotencyKey(fmt.Sprintf("intent-%s-%s-%d", q.BookingID, q.PaymentType, q.AmountCents))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, AmountCents: pi.Amount, Currency: string(pi.Currency)}, nil
}

// ParseWebhook verifies the Stripe signature and maps a succeeded
// PaymentIntent to a capture confirmation.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookCapture, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, domain.NewValidationError("Stripe-Signature", err.Error())
	}
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, domain.NewValidationError("data.object", "is not a payment intent")
	}
	bookingID := pi.Metadata[metaBookingID]
	if bookingID == "" {
		return nil, fmt.Errorf("%w: payment intent %s has no booking", ErrIgnoredEvent, pi.ID)
	}

	method := ""
	if len(pi.PaymentMethodTypes) > 0 {
		method = pi.PaymentMethodTypes[0]
	}
	return &WebhookCapture{
		EventID: event.ID,
		Confirmation: booking.CaptureConfirmation{
			BookingID:     bookingID,
			PaymentType:   domain.PaymentType(pi.Metadata[metaPaymentType]),
			AmountCents:   pi.AmountReceived,
			Currency:      string(pi.Currency),
			TransactionID: pi.ID,
			Method:        method,
			PayerID:       pi.Metadata[metaClientID],
		},
	}, nil
}
