package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-identifier token bucket held in process
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter refilling Requests tokens over Window
func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	requests := policy.Requests
	if requests <= 0 {
		requests = 1
	}
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(policy.Window / time.Duration(requests)),
		burst:   requests,
		now:     time.Now,
	}
}

// MemoryFactory returns a Factory creating in-process limiters
func MemoryFactory() Factory {
	return func(action string, policy Policy) Limiter {
		return NewMemoryLimiter(policy)
	}
}

func (l *MemoryLimiter) get(key string, now time.Time) *rate.Limiter {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Limit takes one token for identifier
func (l *MemoryLimiter) Limit(ctx context.Context, identifier string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limiter := l.get(identifier, now)

	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Success: false, Limit: l.burst, Reset: now}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// Do not consume a token for a rejected request
		r.CancelAt(now)
		return Decision{Success: false, Limit: l.burst, Reset: now.Add(delay)}, nil
	}

	tokens := limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	missing := float64(l.burst) - tokens
	full := time.Duration(missing * float64(time.Second) / float64(l.limit))

	return Decision{
		Success:   true,
		Limit:     l.burst,
		Remaining: remaining,
		Reset:     now.Add(full),
	}, nil
}

// Prune removes buckets not used within idle and returns how many were dropped
func (l *MemoryLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked identifiers
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
