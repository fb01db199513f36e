// Package ratelimit implements the gateway's login-attempt throttle,
// grounded directly on the auth.RateLimiter Redis INCR+EXPIRE fixed-window
// counter: a per-key attempt count with a TTL, checked before a login is
// processed and recorded only on failure so well-behaved clients never pay
// the penalty.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// client is the narrow Redis surface this package needs, satisfied by
// *redis.Client.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, exp time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Limiter throttles login attempts per key (typically the caller's IP) to
// maxAttempts within window.
type Limiter struct {
	redis       client
	keyPrefix   string
	maxAttempts int
	window      time.Duration
}

// New builds a Limiter. maxAttempts is the number of failed attempts
// tolerated per key within window before Check reports Allowed=false.
func New(rdb *redis.Client, keyPrefix string, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{redis: rdb, keyPrefix: keyPrefix, maxAttempts: maxAttempts, window: window}
}

// Result is the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

func (l *Limiter) key(id string) string {
	return fmt.Sprintf("%s:%s", l.keyPrefix, id)
}

// Check reports whether id may attempt a login right now.
func (l *Limiter) Check(ctx context.Context, id string) (Result, error) {
	key := l.key(id)

	count, err := l.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Result{}, fmt.Errorf("ratelimit: get %s: %w", key, err)
	}

	if count >= l.maxAttempts {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err != nil {
			return Result{}, fmt.Errorf("ratelimit: ttl %s: %w", key, err)
		}

		return Result{Allowed: false, RetryAt: time.Now().Add(ttl)}, nil
	}

	return Result{Allowed: true, Remaining: l.maxAttempts - count}, nil
}

// RecordFailure increments id's failed-attempt counter, arming the window's
// expiry on the first increment.
func (l *Limiter) RecordFailure(ctx context.Context, id string) error {
	key := l.key(id)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
	}

	return nil
}

// Reset clears id's counter, called after a successful login.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("ratelimit: del %s: %w", l.key(id), err)
	}

	return nil
}
