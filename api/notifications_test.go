package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotificationUseCase struct {
	mock.Mock
}

func (m *MockNotificationUseCase) List(ctx context.Context, actor domain.Actor, unreadOnly bool) ([]domain.Notification, error) {
	args := m.Called(ctx, actor, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockNotificationUseCase) MarkRead(ctx context.Context, actor domain.Actor, id string) (*domain.Notification, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func TestNotificationHandler_list(t *testing.T) {
	mockService := &MockNotificationUseCase{}
	handler := NewNotificationHandler(mockService)

	c, w := newTestContext(http.MethodGet, "/notifications?unread=true", nil, &artistActor)
	mockService.On("List", c.Request.Context(), artistActor, true).Return([]domain.Notification{{
		ID:        "n-1",
		UserID:    artistActor.ID,
		Type:      domain.NotificationBookingRequested,
		Message:   "New booking request.",
		BookingID: "booking-1",
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}}, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []notificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "booking_requested", response[0].Type)
	assert.False(t, response[0].IsRead)
	mockService.AssertExpectations(t)
}

func TestNotificationHandler_listRejectsBadFlag(t *testing.T) {
	mockService := &MockNotificationUseCase{}
	handler := NewNotificationHandler(mockService)

	c, w := newTestContext(http.MethodGet, "/notifications?unread=perhaps", nil, &artistActor)

	handler.list(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationHandler_markRead(t *testing.T) {
	t.Run("own notification", func(t *testing.T) {
		mockService := &MockNotificationUseCase{}
		handler := NewNotificationHandler(mockService)

		c, w := newTestContext(http.MethodPatch, "/notifications/n-1/read", nil, &artistActor)
		c.Params = gin.Params{{Key: "id", Value: "n-1"}}
		mockService.On("MarkRead", c.Request.Context(), artistActor, "n-1").
			Return(&domain.Notification{ID: "n-1", UserID: artistActor.ID, IsRead: true}, nil)

		handler.markRead(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"is_read":true`)
	})

	t.Run("someone else's notification", func(t *testing.T) {
		mockService := &MockNotificationUseCase{}
		handler := NewNotificationHandler(mockService)

		c, w := newTestContext(http.MethodPatch, "/notifications/n-2/read", nil, &clientActor)
		c.Params = gin.Params{{Key: "id", Value: "n-2"}}
		mockService.On("MarkRead", c.Request.Context(), clientActor, "n-2").
			Return(nil, &domain.NotFoundError{Entity: "notification", ID: "n-2"})

		handler.markRead(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
