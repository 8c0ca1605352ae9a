package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/artbooking/config"
	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client  *redis.Client
	listTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client:  redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		listTTL: time.Duration(cfg.ListTTLSecs) * time.Second,
	}
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, listTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, listTTL: listTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetBookings(ctx context.Context, key string) ([]domain.Booking, bool, error) {
	data, err := c.client.Get(ctx, listKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var bookings []domain.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, false, err
	}
	return bookings, true, nil
}

func (c *RedisCache) SetBookings(ctx context.Context, key string, bookings []domain.Booking) error {
	payload, err := json.Marshal(bookings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(key), payload, c.listTTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, listKey(k))
	}
	return c.client.Del(ctx, prefixed...).Err()
}

// MarkEventOnce records a webhook event id and reports whether this is the
// first time it has been seen.
func (c *RedisCache) MarkEventOnce(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, eventLockKey(eventID), "seen", ttl).Result()
}

// ForgetEvent releases a recorded event id so a redelivery is processed.
func (c *RedisCache) ForgetEvent(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, eventLockKey(eventID)).Err()
}

func listKey(key string) string {
	return "cache:" + key
}

func eventLockKey(eventID string) string {
	return "lock:webhook:event:" + eventID
}
