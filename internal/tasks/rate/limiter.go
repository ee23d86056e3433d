package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit is a sliding window: at most MaxAttempts events per Window.
type Limit struct {
	Window      time.Duration
	MaxAttempts int
}

// SlidingWindowLimiter counts events per identifier in redis, shared across
// instances. Used to throttle login attempts per account so credential
// stuffing cannot brute-force a password between instance restarts.
type SlidingWindowLimiter struct {
	redis *redis.Client
	name  string
	limit Limit
}

func NewSlidingWindowLimiter(redis *redis.Client, name string, limit Limit) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{redis: redis, name: name, limit: limit}
}

// Allow records an attempt for identifier and reports whether it is within
// the limit. Fails open on redis errors: the primary defense is the password
// check, the limiter only slows it down.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("rate_limit:%s:%s", l.name, identifier)

	pipe := l.redis.Pipeline()
	now := time.Now().UnixMilli()
	windowStart := now - l.limit.Window.Milliseconds()

	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, l.limit.Window*2)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return true, fmt.Errorf("redis pipeline error: %w", err)
	}

	count := results[1].(*redis.IntCmd).Val()
	return count < int64(l.limit.MaxAttempts), nil
}
