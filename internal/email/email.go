package email

import (
	"context"

	"github.com/Domenick1991/artbooking/internal/domain"
	"go.uber.org/zap"
)

// Sender delivers notifications by mail. Without an SMTP relay configured
// it only logs what it would send.
type Sender struct {
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("send email",
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.String("booking_id", n.BookingID),
		zap.String("message", n.Message))
	return nil
}
