package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every API instance
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	policy Policy
	now    func() time.Time
}

// NewRedisLimiter creates a limiter storing counters under prefix
func NewRedisLimiter(client redis.UniversalClient, prefix string, policy Policy) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		policy: policy,
		now:    time.Now,
	}
}

// RedisFactory returns a Factory creating redis limiters namespaced by action
func RedisFactory(client redis.UniversalClient, prefix string) Factory {
	return func(action string, policy Policy) Limiter {
		return NewRedisLimiter(client, prefix+":"+action, policy)
	}
}

// Limit increments the window counter for identifier
func (l *RedisLimiter) Limit(ctx context.Context, identifier string) (Decision, error) {
	key := l.prefix + ":" + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// The first hit opens the window
	if count == 1 {
		if err := l.client.PExpire(ctx, key, l.policy.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	// A counter left without expiry would lock the identifier out forever
	if ttl <= 0 {
		if err := l.client.PExpire(ctx, key, l.policy.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		ttl = l.policy.Window
	}

	remaining := l.policy.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Success:   count <= int64(l.policy.Requests),
		Limit:     l.policy.Requests,
		Remaining: remaining,
		Reset:     l.now().Add(ttl),
	}, nil
}
