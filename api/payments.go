package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Domenick1991/artbooking/internal/payment"
	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	callbackSecretHeader = "X-Callback-Secret"
	stripeSignature      = "Stripe-Signature"
	webhookEventTTL      = 72 * time.Hour
	maxWebhookBody       = 64 << 10
)

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookCapture, error)
}

// EventDeduper remembers webhook event ids that were already processed.
type EventDeduper interface {
	MarkEventOnce(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

type PaymentHandler struct {
	service        booking.BookingUseCase
	callbackSecret string
	webhooks       WebhookParser
	events         EventDeduper
	logger         *zap.Logger
}

type captureResponse struct {
	Booking           bookingResponse  `json:"booking"`
	Payment           *paymentResponse `json:"payment,omitempty"`
	Duplicate         bool             `json:"duplicate"`
	ContinuationToken string           `json:"continuation_token,omitempty"`
}

// NewPaymentHandler serves gateway callbacks. webhooks and events may be nil,
// in which case only the shared-secret capture endpoint is useful.
func NewPaymentHandler(
	service booking.BookingUseCase,
	callbackSecret string,
	webhooks WebhookParser,
	events EventDeduper,
	logger *zap.Logger,
) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{
		service:        service,
		callbackSecret: callbackSecret,
		webhooks:       webhooks,
		events:         events,
		logger:         logger,
	}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/capture", h.capture)
	router.POST("/stripe/webhook", h.stripeWebhook)
}

func (h *PaymentHandler) capture(c *gin.Context) {
	got := c.GetHeader(callbackSecretHeader)
	if h.callbackSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid callback secret"})
		return
	}

	var req booking.CaptureConfirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.service.Capture(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaptureResponse(result))
}

func (h *PaymentHandler) stripeWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stripe is not configured"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, err)
		return
	}

	capture, err := h.webhooks.ParseWebhook(payload, c.GetHeader(stripeSignature))
	if errors.Is(err, payment.ErrIgnoredEvent) {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if h.events != nil {
		first, err := h.events.MarkEventOnce(ctx, capture.EventID, webhookEventTTL)
		if err != nil {
			// Capture is idempotent by transaction id, so a dedupe miss is safe.
			h.logger.Warn("webhook dedupe unavailable", zap.String("event_id", capture.EventID), zap.Error(err))
		} else if !first {
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	result, err := h.service.Capture(ctx, capture.Confirmation)
	if err != nil {
		if h.events != nil {
			if ferr := h.events.ForgetEvent(context.WithoutCancel(ctx), capture.EventID); ferr != nil {
				h.logger.Warn("failed to release webhook event", zap.String("event_id", capture.EventID), zap.Error(ferr))
			}
		}
		h.logger.Error("stripe capture failed",
			zap.String("event_id", capture.EventID),
			zap.String("booking_id", capture.Confirmation.BookingID),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaptureResponse(result))
}

func toCaptureResponse(r *booking.CaptureResult) captureResponse {
	resp := captureResponse{
		Booking:           toBookingResponse(r.Booking),
		Duplicate:         r.Duplicate,
		ContinuationToken: r.ContinuationToken,
	}
	if r.Payment != nil {
		p := toPaymentResponse(r.Payment)
		resp.Payment = &p
	}
	return resp
}
