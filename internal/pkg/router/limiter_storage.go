package router

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"

	"github.com/axdashboard/axdash/internal/pkg/cache"
	"github.com/axdashboard/axdash/internal/pkg/env"
)

// limiterDatabase keeps rate limit counters apart from the job queue keys.
const limiterDatabase = 2

// newLimiterStorage shares rate limit counters between instances through redis.
// When redis is unreachable the limiter falls back to process memory.
func newLimiterStorage() fiber.Storage {
	if !env.GetEnvBool("RATE_LIMIT_REDIS", true) {
		return nil
	}

	cacheClient := cache.GetClient()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cacheClient.Ping(ctx).Err(); err != nil {
		log.Warnf("[Router] Redis unavailable for rate limiting, using memory storage: %v", err)
		return nil
	}

	opts := cacheClient.Options()
	host, port := "localhost", 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Username: opts.Username,
		Password: opts.Password,
		Database: env.GetEnvInt("RATE_LIMIT_DB", limiterDatabase),
		Reset:    false,
	})
}
