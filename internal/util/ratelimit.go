package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces operations to a fixed rate while allowing short bursts.
// It tracks the theoretical arrival time of the next operation instead of a
// token count, so Wait sleeps exactly as long as needed. A nil *RateLimiter
// never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time to earn one slot
	burst    int
	tat      time.Time
}

// NewRateLimiter allows perMinute operations per minute with up to burst of
// them back to back. It returns nil (unlimited) when perMinute <= 0.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		burst:    burst,
	}
}

// Wait blocks until the operation may proceed or ctx is done. A cancelled
// wait does not use up a slot.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}
	for {
		d := rl.reserve(time.Now())
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve claims a slot at now, or reports how long until one frees up.
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tat := rl.tat
	if tat.Before(now) {
		tat = now
	}
	allowAt := tat.Add(-time.Duration(rl.burst-1) * rl.interval)
	if now.Before(allowAt) {
		return allowAt.Sub(now)
	}
	rl.tat = tat.Add(rl.interval)
	return 0
}
