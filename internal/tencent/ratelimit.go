package tencent

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls per plane by a minimum interval.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    map[string]time.Time
}

// NewRateLimiter returns a limiter; a zero interval never waits.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		lastCall:    make(map[string]time.Time),
	}
}

// Wait blocks until the next call on key is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl == nil || rl.minInterval <= 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := time.Now()
	next := now
	if last, ok := rl.lastCall[key]; ok && now.Sub(last) < rl.minInterval {
		next = last.Add(rl.minInterval)
	}
	// Reserve the slot before sleeping so concurrent callers queue behind it.
	rl.lastCall[key] = next
	rl.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
