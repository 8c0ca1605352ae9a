package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/artbooking/internal/auth"
	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/payment"
	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) result(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, actor domain.Actor, input booking.CreateBookingInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, input))
}

func (m *MockBookingUseCase) Decide(ctx context.Context, actor domain.Actor, bookingID string, accept bool) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID, accept))
}

func (m *MockBookingUseCase) DraftContract(ctx context.Context, actor domain.Actor, bookingID string, input booking.DraftContractInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID, input))
}

func (m *MockBookingUseCase) SignContract(ctx context.Context, actor domain.Actor, bookingID string, input booking.SignContractInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID, input))
}

func (m *MockBookingUseCase) RequestCancellation(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingUseCase) ApproveCancellation(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingUseCase) AdminCancel(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingUseCase) ListBookings(ctx context.Context, actor domain.Actor, sortBy string) ([]domain.Booking, error) {
	args := m.Called(ctx, actor, sortBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListPayments(ctx context.Context, actor domain.Actor, bookingID string) ([]domain.Payment, error) {
	args := m.Called(ctx, actor, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockBookingUseCase) PaymentQuote(ctx context.Context, actor domain.Actor, bookingID string, paymentType domain.PaymentType) (*booking.Quote, error) {
	args := m.Called(ctx, actor, bookingID, paymentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Quote), args.Error(1)
}

func (m *MockBookingUseCase) Capture(ctx context.Context, confirmation booking.CaptureConfirmation) (*booking.CaptureResult, error) {
	args := m.Called(ctx, confirmation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.CaptureResult), args.Error(1)
}

type MockIntentCreator struct {
	mock.Mock
}

func (m *MockIntentCreator) CreateIntent(ctx context.Context, q booking.Quote) (*payment.Intent, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

var (
	clientActor = domain.Actor{ID: "client-1", Role: domain.PartyClient}
	artistActor = domain.Actor{ID: "artist-1", Role: domain.PartyArtist}
)

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:             "booking-1",
		ClientID:       clientActor.ID,
		ArtistID:       artistActor.ID,
		EventDate:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:      start,
		EndTime:        start.Add(2 * time.Hour),
		ContactEmail:   "client@example.com",
		Status:         status,
		ContractStatus: domain.ContractStatusNone,
		Currency:       "usd",
		LastActionTime: start.Add(-48 * time.Hour),
		CreatedAt:      start.Add(-48 * time.Hour),
		UpdatedAt:      start.Add(-48 * time.Hour),
	}
}

func newTestContext(method, target string, body any, actor *domain.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if actor != nil {
		auth.SetActor(c, *actor)
	}
	return c, w
}

func bookingIDParam(c *gin.Context) {
	c.Params = gin.Params{{Key: "id", Value: "booking-1"}}
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)

	input := map[string]any{
		"artist_id":     "artist-1",
		"start_time":    "2026-06-01T18:00:00Z",
		"end_time":      "2026-06-01T20:00:00Z",
		"contact_email": "client@example.com",
	}
	c, w := newTestContext(http.MethodPost, "/bookings", input, &clientActor)

	mockService.On("CreateBooking", c.Request.Context(), clientActor, mock.MatchedBy(func(in booking.CreateBookingInput) bool {
		return in.ArtistID == "artist-1" && in.EndTime.Sub(in.StartTime) == 2*time.Hour
	})).Return(sampleBooking(domain.BookingStatusPending), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "booking-1", response.ID)
	assert.Equal(t, string(domain.BookingStatusPending), response.Status)
	assert.Equal(t, "2026-06-01", response.EventDate)
	assert.Equal(t, []string{}, response.PaymentIDs)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_createErrors(t *testing.T) {
	testCases := []struct {
		name       string
		body       any
		actor      *domain.Actor
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unauthenticated",
			body:       map[string]any{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed body",
			body:       "{not json",
			actor:      &clientActor,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "calendar conflict",
			body:       map[string]any{"artist_id": "artist-1"},
			actor:      &clientActor,
			serviceErr: &domain.ConflictError{ArtistID: "artist-1", ConflictingID: "other", Buffer: 30 * time.Minute},
			wantStatus: http.StatusConflict,
			wantCode:   "booking_conflict",
		},
		{
			name:       "wrong role",
			body:       map[string]any{"artist_id": "artist-1"},
			actor:      &artistActor,
			serviceErr: &domain.AuthorizationError{ActorID: artistActor.ID, Reason: "only clients can request bookings"},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService, nil)
			c, w := newTestContext(http.MethodPost, "/bookings", tc.body, tc.actor)
			if tc.serviceErr != nil {
				mockService.On("CreateBooking", mock.Anything, *tc.actor, mock.Anything).Return(nil, tc.serviceErr)
			}

			handler.create(c)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantCode != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tc.wantCode, body["code"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestBookingHandler_list(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)

	c, w := newTestContext(http.MethodGet, "/bookings?sortBy=priority", nil, &artistActor)
	mockService.On("ListBookings", c.Request.Context(), artistActor, "priority").
		Return([]domain.Booking{*sampleBooking(domain.BookingStatusPending), *sampleBooking(domain.BookingStatusAccepted)}, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 2)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_listBadSortKey(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)

	c, w := newTestContext(http.MethodGet, "/bookings?sortBy=rank", nil, &artistActor)
	mockService.On("ListBookings", c.Request.Context(), artistActor, "rank").
		Return(nil, domain.NewValidationError("sortBy", "must be one of priority, createdAt, updatedAt"))

	handler.list(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "sortBy")
}

func TestBookingHandler_decide(t *testing.T) {
	t.Run("accept", func(t *testing.T) {
		mockService := &MockBookingUseCase{}
		handler := NewBookingHandler(mockService, nil)
		c, w := newTestContext(http.MethodPatch, "/bookings/booking-1/status", decisionRequest{Decision: "accept"}, &artistActor)
		bookingIDParam(c)
		mockService.On("Decide", c.Request.Context(), artistActor, "booking-1", true).
			Return(sampleBooking(domain.BookingStatusAccepted), nil)

		handler.decide(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"accepted"`)
		mockService.AssertExpectations(t)
	})

	t.Run("unknown decision never reaches the service", func(t *testing.T) {
		mockService := &MockBookingUseCase{}
		handler := NewBookingHandler(mockService, nil)
		c, w := newTestContext(http.MethodPatch, "/bookings/booking-1/status", decisionRequest{Decision: "maybe"}, &artistActor)
		bookingIDParam(c)

		handler.decide(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale state reports current status", func(t *testing.T) {
		mockService := &MockBookingUseCase{}
		handler := NewBookingHandler(mockService, nil)
		c, w := newTestContext(http.MethodPatch, "/bookings/booking-1/status", decisionRequest{Decision: "reject"}, &artistActor)
		bookingIDParam(c)
		mockService.On("Decide", c.Request.Context(), artistActor, "booking-1", false).
			Return(nil, &domain.StateError{BookingID: "booking-1", Current: domain.BookingStatusAccepted, Action: "reject"})

		handler.decide(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "invalid_transition", body["code"])
		assert.Equal(t, "accepted", body["current_status"])
	})
}

func TestBookingHandler_transitions(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		call   func(h *BookingHandler, c *gin.Context)
		status domain.BookingStatus
	}{
		{
			name:   "RequestCancellation",
			call:   func(h *BookingHandler, c *gin.Context) { h.requestCancellation(c) },
			status: domain.BookingStatusCancellationRequestedByClient,
		},
		{
			name:   "ApproveCancellation",
			call:   func(h *BookingHandler, c *gin.Context) { h.approveCancellation(c) },
			status: domain.BookingStatusCancelled,
		},
		{
			name:   "AdminCancel",
			call:   func(h *BookingHandler, c *gin.Context) { h.adminCancel(c) },
			status: domain.BookingStatusCancelled,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService, nil)
			c, w := newTestContext(http.MethodPost, "/bookings/booking-1/x", nil, &clientActor)
			bookingIDParam(c)
			mockService.On(tc.name, c.Request.Context(), clientActor, "booking-1").Return(sampleBooking(tc.status), nil)

			tc.call(handler, c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"`+string(tc.status)+`"`)
			mockService.AssertExpectations(t)
		})
	}
}

func TestBookingHandler_transientError(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)
	c, w := newTestContext(http.MethodGet, "/bookings/booking-1", nil, &clientActor)
	bookingIDParam(c)
	mockService.On("GetBooking", c.Request.Context(), clientActor, "booking-1").
		Return(nil, &domain.TransientError{Op: "get booking", Err: errors.New("connection reset")})

	handler.get(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestBookingHandler_contract(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)

	draft := booking.DraftContractInput{WageCents: 100000, Currency: "usd", ClientSignature: "data:image/png;base64,AAAA"}
	c, w := newTestContext(http.MethodPost, "/bookings/booking-1/contract/draft", draft, &clientActor)
	bookingIDParam(c)
	drafted := sampleBooking(domain.BookingStatusAccepted)
	drafted.ContractStatus = domain.ContractStatusDraft
	drafted.WageCents = 100000
	drafted.AdvanceCents = 30000
	mockService.On("DraftContract", c.Request.Context(), clientActor, "booking-1", draft).Return(drafted, nil)

	handler.draftContract(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "draft", response.ContractStatus)
	assert.Equal(t, int64(30000), response.AdvanceCents)

	sign := booking.SignContractInput{ArtistSignature: "data:image/png;base64,BBBB"}
	c, w = newTestContext(http.MethodPost, "/bookings/booking-1/contract/sign", sign, &artistActor)
	bookingIDParam(c)
	signed := drafted.Clone()
	signed.ContractStatus = domain.ContractStatusSigned
	signed.ContractURL = "https://res.example.com/contract-booking-1.html"
	mockService.On("SignContract", c.Request.Context(), artistActor, "booking-1", sign).Return(signed, nil)

	handler.signContract(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contract-booking-1.html")
	mockService.AssertExpectations(t)
}

func TestBookingHandler_createIntent(t *testing.T) {
	mockService := &MockBookingUseCase{}
	intents := &MockIntentCreator{}
	handler := NewBookingHandler(mockService, intents)

	c, w := newTestContext(http.MethodPost, "/bookings/booking-1/payments/intent", intentRequest{PaymentType: domain.PaymentTypeAdvance}, &clientActor)
	bookingIDParam(c)
	quote := &booking.Quote{BookingID: "booking-1", ClientID: clientActor.ID, PaymentType: domain.PaymentTypeAdvance, AmountCents: 30000, Currency: "usd"}
	mockService.On("PaymentQuote", c.Request.Context(), clientActor, "booking-1", domain.PaymentTypeAdvance).Return(quote, nil)
	intents.On("CreateIntent", c.Request.Context(), *quote).Return(&payment.Intent{ID: "pi_1", ClientSecret: "secret", AmountCents: 30000, Currency: "usd"}, nil)

	handler.createIntent(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"client_secret":"secret"`)
	mockService.AssertExpectations(t)
	intents.AssertExpectations(t)
}

func TestBookingHandler_createIntentGatewayDown(t *testing.T) {
	mockService := &MockBookingUseCase{}
	intents := &MockIntentCreator{}
	handler := NewBookingHandler(mockService, intents)

	c, w := newTestContext(http.MethodPost, "/bookings/booking-1/payments/intent", intentRequest{PaymentType: domain.PaymentTypeFinal}, &clientActor)
	bookingIDParam(c)
	quote := &booking.Quote{BookingID: "booking-1", PaymentType: domain.PaymentTypeFinal, AmountCents: 70000, Currency: "usd"}
	mockService.On("PaymentQuote", mock.Anything, clientActor, "booking-1", domain.PaymentTypeFinal).Return(quote, nil)
	intents.On("CreateIntent", mock.Anything, *quote).Return(nil, errors.New("stripe: timeout"))

	handler.createIntent(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestBookingHandler_payments(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)

	c, w := newTestContext(http.MethodGet, "/bookings/booking-1/payments", nil, &clientActor)
	bookingIDParam(c)
	mockService.On("ListPayments", c.Request.Context(), clientActor, "booking-1").Return([]domain.Payment{{
		ID:            "pay-1",
		BookingID:     "booking-1",
		AmountCents:   30000,
		Currency:      "usd",
		PaymentType:   domain.PaymentTypeAdvance,
		Status:        domain.PaymentStatusRefunded,
		TransactionID: "txn-1",
	}}, nil)

	handler.payments(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []paymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "refunded", response[0].Status)
}
