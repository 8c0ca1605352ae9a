package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/kafka"
	"github.com/Domenick1991/artbooking/internal/repository"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestDeliverer_Emit(t *testing.T) {
	store := repository.NewMemoryNotificationRepository()
	mailer := &MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	d := NewDeliverer(store, mailer, zap.NewNop())
	ctx := context.Background()

	err := d.Emit(ctx, domain.Notification{ID: "n1", UserID: "u1", Type: domain.NotificationBookingAccepted, CreatedAt: time.Now()})

	require.NoError(t, err)
	list, err := store.ListForUser(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	mailer.AssertExpectations(t)
}

func TestDeliverer_HandleMessage(t *testing.T) {
	store := repository.NewMemoryNotificationRepository()
	d := NewDeliverer(store, nil, zap.NewNop())
	ctx := context.Background()

	value, err := json.Marshal(kafka.NotificationEvent{ID: "n1", UserID: "u1", Type: "payment_received", Message: "paid"})
	require.NoError(t, err)

	require.NoError(t, d.HandleMessage(ctx, kafkago.Message{Value: value}))
	require.NoError(t, d.HandleMessage(ctx, kafkago.Message{Value: value}))
	list, err := store.ListForUser(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationPaymentReceived, list[0].Type)

	err = d.HandleMessage(ctx, kafkago.Message{Value: []byte("nope")})
	assert.ErrorIs(t, err, kafka.ErrSkipMessage)
}
