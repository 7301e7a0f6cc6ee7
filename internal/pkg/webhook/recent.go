package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/axdashboard/axdash/internal/pkg/env"
)

const (
	recentDeliveryPrefix     = "axdash:webhook:recent:"
	defaultRecentDeliveryTTL = 2 * time.Minute
)

// RecentDeliveries remembers delivery keys for a short window. It only guards
// deliveries without a provider webhook id, which the unique index cannot.
type RecentDeliveries interface {
	// FirstSeen records key and reports whether it was not already recorded.
	FirstSeen(ctx context.Context, key string) (bool, error)
	// Forget drops key so a redelivery is accepted again.
	Forget(ctx context.Context, key string) error
}

// RedisRecentDeliveries keeps delivery keys as expiring redis keys.
type RedisRecentDeliveries struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRecentDeliveries(client *redis.Client, ttl time.Duration) *RedisRecentDeliveries {
	if ttl <= 0 {
		ttl = defaultRecentDeliveryTTL
	}
	return &RedisRecentDeliveries{client: client, ttl: ttl}
}

// RecentDeliveryWindow reads WEBHOOK_DEDUP_WINDOW. Zero or a negative value
// disables the window.
func RecentDeliveryWindow() time.Duration {
	return env.GetEnvDuration("WEBHOOK_DEDUP_WINDOW", defaultRecentDeliveryTTL)
}

func (r *RedisRecentDeliveries) FirstSeen(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, recentDeliveryPrefix+key, 1, r.ttl).Result()
}

func (r *RedisRecentDeliveries) Forget(ctx context.Context, key string) error {
	return r.client.Del(ctx, recentDeliveryPrefix+key).Err()
}
