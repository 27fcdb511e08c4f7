package redis

import (
	"context"
	"time"

	"discord-storefront/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// Decision is the outcome of one hit against a window.
type Decision struct {
	Allowed bool
	Count   int64
	// RetryAfter is how long until the window resets; zero when Allowed.
	RetryAfter time.Duration
}

// RateLimiter is a fixed-window counter keyed per caller. The window opens on
// the first hit; a counter that lost its expiry is given a fresh window
// instead of blocking the key forever.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	d, err := r.Check(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Check records a hit on key and reports whether it fits inside limit.
func (r *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Count: count, Allowed: count <= int64(limit)}

	ttl := window
	if count > 1 {
		if ttl, err = r.client.TTL(ctx, key); err != nil {
			return Decision{}, err
		}
	}
	if count == 1 || ttl < 0 {
		// INCR and EXPIRE are separate round trips
		if err := r.client.Expire(ctx, key, window); err != nil {
			return Decision{}, err
		}
		ttl = window
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
