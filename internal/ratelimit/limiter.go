/**
 * @description
 * Sliding-window rate limiting keyed by an arbitrary string. A check that
 * does not fail consumes one slot; there is no separate peek/commit step.
 * The in-memory limiter here is the default; a Redis-backed limiter with the
 * same contract lives in redis.go for multi-process deployments.
 */

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned when a key already holds the maximum
// number of events inside the trailing window.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter admits or rejects one event for a key.
type Limiter interface {
	// Check prunes events older than the window, fails if max events remain,
	// and otherwise records the current instant as a new event.
	Check(ctx context.Context, key string, window time.Duration, max int) error
}

// MemoryLimiter is a process-local sliding-window limiter.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// NewMemoryLimiter creates a limiter. A nil now func defaults to time.Now;
// tests inject a fake clock.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		hits: make(map[string][]time.Time),
		now:  now,
	}
}

func (l *MemoryLimiter) Check(ctx context.Context, key string, window time.Duration, max int) error {
	if max <= 0 || window <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.hits[key][:0]
	for _, at := range l.hits[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= max {
		l.hits[key] = kept
		return ErrRateLimitExceeded
	}

	l.hits[key] = append(kept, now)
	return nil
}
