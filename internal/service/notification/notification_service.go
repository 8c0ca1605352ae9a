package notification

import (
	"context"
	"errors"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/repository"
)

type NotificationUseCase interface {
	List(ctx context.Context, actor domain.Actor, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, actor domain.Actor, id string) (*domain.Notification, error)
}

type NotificationService struct {
	notifications repository.NotificationRepository
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(ctx context.Context, actor domain.Actor, unreadOnly bool) ([]domain.Notification, error) {
	list, err := s.notifications.ListForUser(ctx, actor.ID, unreadOnly)
	if err != nil {
		return nil, &domain.TransientError{Op: "list notifications", Err: err}
	}
	return list, nil
}

// MarkRead only touches notifications owned by the actor; anything else
// reads as not found.
func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id string) (*domain.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, id, actor.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, &domain.NotFoundError{Entity: "notification", ID: id}
	case err != nil:
		return nil, &domain.TransientError{Op: "mark notification read", Err: err}
	}
	return n, nil
}

var _ NotificationUseCase = (*NotificationService)(nil)
