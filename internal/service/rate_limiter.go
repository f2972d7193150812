package service

import (
	"context"
	"time"
)

// DefaultRateLimitDelay is the minimum spacing between caption API calls
const DefaultRateLimitDelay = 2 * time.Second

// RateLimiter enforces a global minimum delay between consecutive grants.
// Callers are served one at a time; the wait for the next slot happens while
// holding the token, so no two grants are ever closer than delay. There is
// no burst allowance.
type RateLimiter struct {
	token chan struct{}
	delay time.Duration

	// guarded by token
	last    time.Time
	granted bool
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(delay time.Duration) *RateLimiter {
	if delay < 0 {
		delay = 0
	}
	return &RateLimiter{
		token: make(chan struct{}, 1),
		delay: delay,
	}
}

// Delay returns the configured minimum spacing.
func (rl *RateLimiter) Delay() time.Duration {
	return rl.delay
}

// Acquire blocks until at least delay has passed since the previous Acquire
// returned. The first call returns immediately. It returns ctx.Err() if the
// context ends while waiting.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case rl.token <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-rl.token }()

	if rl.granted {
		if wait := rl.delay - time.Since(rl.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	rl.last = time.Now()
	rl.granted = true
	return nil
}
