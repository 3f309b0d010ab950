package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type redisCounter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	RateLimitKey(scope string) string
}

// RedisLimiter shares fixed-window counters across instances through Redis.
type RedisLimiter struct {
	store redisCounter
	now   func() time.Time
}

// NewRedisLimiter wraps the platform Redis client.
func NewRedisLimiter(store redisCounter) (*RedisLimiter, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	return &RedisLimiter{store: store, now: time.Now}, nil
}

// Check increments the shared counter for key.
func (r *RedisLimiter) Check(ctx context.Context, key string, max int, win time.Duration) (Result, error) {
	redisKey := r.store.RateLimitKey(key)
	count, err := r.store.IncrWithTTL(ctx, redisKey, win)
	if err != nil {
		return Result{}, fmt.Errorf("increment rate limit counter: %w", err)
	}
	ttl, err := r.store.TTL(ctx, redisKey)
	if err != nil || ttl <= 0 {
		ttl = win
	}
	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(max),
		Remaining: remaining,
		ResetAt:   r.now().Add(ttl),
	}, nil
}
