package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps outbound courier API calls per window. Counters live in
// redis so the limits hold across restarts.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow INCRs the key and attaches the window TTL.
// Returns (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AllowCourier is Allow with a minute-bucketed per-courier counter key.
func (rl *RateLimiter) AllowCourier(ctx context.Context, courier string, limit int64, window time.Duration) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:courier:%s:%s", courier, time.Now().UTC().Format("200601021504"))
	return rl.Allow(ctx, key, limit, window)
}
