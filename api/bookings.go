package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/artbooking/internal/auth"
	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/payment"
	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

// IntentCreator opens a checkout with the payment gateway for a quote.
type IntentCreator interface {
	CreateIntent(ctx context.Context, q booking.Quote) (*payment.Intent, error)
}

type BookingHandler struct {
	service booking.BookingUseCase
	intents IntentCreator
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

type intentRequest struct {
	PaymentType domain.PaymentType `json:"payment_type"`
}

type bookingResponse struct {
	ID             string     `json:"id"`
	ClientID       string     `json:"client_id"`
	ArtistID       string     `json:"artist_id"`
	EventDate      string     `json:"event_date"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	Location       string     `json:"location,omitempty"`
	ContactName    string     `json:"contact_name,omitempty"`
	ContactEmail   string     `json:"contact_email"`
	ContactPhone   string     `json:"contact_phone,omitempty"`
	EventType      string     `json:"event_type,omitempty"`
	EventDetails   string     `json:"event_details,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status"`
	CancelledBy    string     `json:"cancelled_by,omitempty"`
	ContractStatus string     `json:"contract_status"`
	ContractURL    string     `json:"contract_url,omitempty"`
	ClientSignedAt *time.Time `json:"client_signed_at,omitempty"`
	ArtistSignedAt *time.Time `json:"artist_signed_at,omitempty"`
	WageCents      int64      `json:"wage_cents"`
	AdvanceCents   int64      `json:"advance_cents"`
	Currency       string     `json:"currency"`
	IsPaid         bool       `json:"is_paid"`
	IsFinalPaid    bool       `json:"is_final_paid"`
	PaymentIDs     []string   `json:"payment_ids"`
	LastActionTime string     `json:"last_action_time"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

type paymentResponse struct {
	ID            string `json:"id"`
	BookingID     string `json:"booking_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Method        string `json:"method,omitempty"`
	PaymentType   string `json:"payment_type"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	CreatedAt     string `json:"created_at"`
}

func NewBookingHandler(service booking.BookingUseCase, intents IntentCreator) *BookingHandler {
	return &BookingHandler{service: service, intents: intents}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/payments", h.payments)
	router.PATCH("/:id/status", h.decide)
	router.POST("/:id/cancellation", h.requestCancellation)
	router.POST("/:id/cancellation/approve", h.approveCancellation)
	router.POST("/:id/admin-cancel", h.adminCancel)
	router.POST("/:id/contract/draft", h.draftContract)
	router.POST("/:id/contract/sign", h.signContract)
	router.POST("/:id/payments/intent", h.createIntent)
}

func (h *BookingHandler) create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) list(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookings, err := h.service.ListBookings(c.Request.Context(), actor, c.Query("sortBy"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) payments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, toPaymentResponse(&payments[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) decide(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var accept bool
	switch req.Decision {
	case "accept":
		accept = true
	case "reject":
	default:
		writeError(c, domain.NewValidationError("decision", "must be accept or reject"))
		return
	}

	b, err := h.service.Decide(c.Request.Context(), actor, c.Param("id"), accept)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) requestCancellation(c *gin.Context) {
	h.transition(c, h.service.RequestCancellation)
}

func (h *BookingHandler) approveCancellation(c *gin.Context) {
	h.transition(c, h.service.ApproveCancellation)
}

func (h *BookingHandler) adminCancel(c *gin.Context) {
	h.transition(c, h.service.AdminCancel)
}

// transition runs a body-less state change on the booking named in the path.
func (h *BookingHandler) transition(c *gin.Context, op func(context.Context, domain.Actor, string) (*domain.Booking, error)) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	b, err := op(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) draftContract(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req booking.DraftContractInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.service.DraftContract(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) signContract(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req booking.SignContractInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.service.SignContract(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) createIntent(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.service.PaymentQuote(c.Request.Context(), actor, c.Param("id"), req.PaymentType)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.intents == nil {
		c.JSON(http.StatusOK, gin.H{"quote": quote})
		return
	}

	intent, err := h.intents.CreateIntent(c.Request.Context(), *quote)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quote": quote, "intent": intent})
}

func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return domain.Actor{}, false
	}
	return actor, true
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	paymentIDs := b.PaymentIDs
	if paymentIDs == nil {
		paymentIDs = []string{}
	}
	return bookingResponse{
		ID:             b.ID,
		ClientID:       b.ClientID,
		ArtistID:       b.ArtistID,
		EventDate:      b.EventDate.Format(time.DateOnly),
		StartTime:      b.StartTime.Format(time.RFC3339),
		EndTime:        b.EndTime.Format(time.RFC3339),
		Location:       b.Location,
		ContactName:    b.ContactName,
		ContactEmail:   b.ContactEmail,
		ContactPhone:   b.ContactPhone,
		EventType:      b.EventType,
		EventDetails:   b.EventDetails,
		Notes:          b.Notes,
		Status:         string(b.Status),
		CancelledBy:    string(b.CancelledBy),
		ContractStatus: string(b.ContractStatus),
		ContractURL:    b.ContractURL,
		ClientSignedAt: b.ClientSignedAt,
		ArtistSignedAt: b.ArtistSignedAt,
		WageCents:      b.WageCents,
		AdvanceCents:   b.AdvanceCents,
		Currency:       b.Currency,
		IsPaid:         b.IsPaid,
		IsFinalPaid:    b.IsFinalPaid,
		PaymentIDs:     paymentIDs,
		LastActionTime: b.LastActionTime.Format(time.RFC3339Nano),
		CreatedAt:      b.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		BookingID:     p.BookingID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Method:        p.Method,
		PaymentType:   string(p.PaymentType),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}
