package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Domenick1991/artbooking/internal/domain"
)

type MemoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]domain.Notification
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{notifications: make(map[string]domain.Notification)}
}

func (r *MemoryNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifications[n.ID]; !exists {
		r.notifications[n.ID] = *n
	}
	return nil
}

func (r *MemoryNotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemoryNotificationRepository) MarkRead(ctx context.Context, id, ownerID string) (*domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	n.IsRead = true
	r.notifications[id] = n
	return &n, nil
}

var _ NotificationRepository = (*MemoryNotificationRepository)(nil)
