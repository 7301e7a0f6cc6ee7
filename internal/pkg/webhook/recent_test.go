package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axdashboard/axdash/internal/pkg/env"
)

const recentDeliveriesTestRedisDB = 13

func newRecentDeliveriesRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       recentDeliveriesTestRedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisRecentDeliveries(t *testing.T) {
	client := newRecentDeliveriesRedis(t)
	recent := NewRedisRecentDeliveries(client, time.Minute)
	ctx := context.Background()

	first, err := recent.FirstSeen(ctx, "hash:abc")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := recent.FirstSeen(ctx, "hash:abc")
	require.NoError(t, err)
	assert.False(t, again)

	ttl, err := client.TTL(ctx, recentDeliveryPrefix+"hash:abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, recent.Forget(ctx, "hash:abc"))
	first, err = recent.FirstSeen(ctx, "hash:abc")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRecentDeliveryWindowFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_DEDUP_WINDOW", "")
	assert.Equal(t, defaultRecentDeliveryTTL, RecentDeliveryWindow())

	t.Setenv("WEBHOOK_DEDUP_WINDOW", "0")
	assert.Equal(t, time.Duration(0), RecentDeliveryWindow())

	t.Setenv("WEBHOOK_DEDUP_WINDOW", "30s")
	assert.Equal(t, 30*time.Second, RecentDeliveryWindow())
}
