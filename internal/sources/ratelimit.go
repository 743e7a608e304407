package sources

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that refills limit tokens per window
type RateLimiter struct {
	limit    int
	window   time.Duration
	tokens   int
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		tokens:   limit,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.reserve()
		if wait == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// reserve takes a token and returns 0, or returns how long to wait for one
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	interval := r.window / time.Duration(r.limit)
	if interval <= 0 {
		return 0
	}

	if refill := int(now.Sub(r.lastTime) / interval); refill > 0 {
		r.tokens += refill
		r.lastTime = r.lastTime.Add(time.Duration(refill) * interval)
		if r.tokens >= r.limit {
			r.tokens = r.limit
			r.lastTime = now
		}
	}

	if r.tokens > 0 {
		r.tokens--
		return 0
	}

	wait := interval - now.Sub(r.lastTime)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}
