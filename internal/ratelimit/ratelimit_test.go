package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitTimeSeconds(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		delta time.Duration
		want  int
	}{
		{name: "Exact Second", delta: time.Second, want: 1},
		{name: "Partial Second Rounds Up", delta: 1500 * time.Millisecond, want: 2},
		{name: "One Millisecond", delta: time.Millisecond, want: 1},
		{name: "Just Under A Minute", delta: 59001 * time.Millisecond, want: 60},
		{name: "Already Reset", delta: 0, want: 0},
		{name: "Reset In The Past", delta: -3 * time.Second, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WaitTimeSeconds(now.Add(tt.delta), now))
		})
	}
}

func TestDecision_WaitTime(t *testing.T) {
	now := time.Now()
	reset := now.Add(2300 * time.Millisecond)

	assert.Equal(t, 3, Decision{Success: false, Reset: reset}.WaitTime(now))
	assert.Equal(t, 0, Decision{Success: true, Reset: reset}.WaitTime(now))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "login:203.0.113.7:ada@example.com", Key(ActionLogin, "203.0.113.7", " Ada@Example.com "))
	assert.Equal(t, "comment:10.0.0.1", Key(ActionComment, "10.0.0.1", ""))
	assert.Equal(t, "global", Key(ActionGlobal))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	limiter := NewRedisLimiter(client, "rl:login", Policy{Requests: 3, Window: time.Minute})
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Limit(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Success)
		require.Equal(t, 2-i, d.Remaining)
		require.Equal(t, 3, d.Limit)
	}

	d, err := limiter.Limit(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, d.Success)
	require.Equal(t, 0, d.Remaining)
	require.Equal(t, now.Add(time.Minute), d.Reset)
	require.Equal(t, 60, d.WaitTime(now))

	// Other identifiers have their own window
	d, err = limiter.Limit(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, d.Success)

	require.True(t, mr.Exists("rl:login:1.2.3.4"))
	mr.FastForward(61 * time.Second)

	d, err = limiter.Limit(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, d.Success)
	require.Equal(t, 2, d.Remaining)
}

func TestRedisLimiter_RepairsMissingExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("rl:x:id", "5"))

	limiter := NewRedisLimiter(client, "rl:x", Policy{Requests: 3, Window: 10 * time.Second})
	d, err := limiter.Limit(context.Background(), "id")
	require.NoError(t, err)
	require.False(t, d.Success)
	require.Equal(t, 10*time.Second, mr.TTL("rl:x:id"))
}

func TestRedisLimiter_BackendDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	limiter := NewRedisLimiter(client, "rl", Policy{Requests: 1, Window: time.Second})
	_, err := limiter.Limit(context.Background(), "id")
	require.ErrorIs(t, err, ErrBackendUnavailable)

	// Wrapped limiters let the request through
	d, err := FailOpen("test", limiter).Limit(context.Background(), "id")
	require.NoError(t, err)
	require.True(t, d.Success)
}

func TestMemoryLimiter_TokenBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(Policy{Requests: 3, Window: 3 * time.Second})
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Limit(ctx, "id")
		require.NoError(t, err)
		require.True(t, d.Success)
		require.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Limit(ctx, "id")
	require.NoError(t, err)
	require.False(t, d.Success)
	require.Equal(t, 1, d.WaitTime(now))

	// Rejected calls do not drain the bucket further
	d, err = limiter.Limit(ctx, "id")
	require.NoError(t, err)
	require.False(t, d.Success)
	require.Equal(t, 1, d.WaitTime(now))

	now = now.Add(1500 * time.Millisecond)
	d, err = limiter.Limit(ctx, "id")
	require.NoError(t, err)
	require.True(t, d.Success)
}

func TestMemoryLimiter_Prune(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(Policy{Requests: 10, Window: time.Minute})
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = limiter.Limit(ctx, "old")
	now = now.Add(2 * time.Hour)
	_, _ = limiter.Limit(ctx, "fresh")

	require.Equal(t, 2, limiter.Size())
	require.Equal(t, 1, limiter.Prune(time.Hour))
	require.Equal(t, 1, limiter.Size())
}

func TestSet(t *testing.T) {
	set := NewSet(MemoryFactory(), map[string]Policy{
		ActionLogin: {Requests: 1, Window: time.Minute},
	})
	ctx := context.Background()

	d, err := set.For(ActionLogin).Limit(ctx, "a")
	require.NoError(t, err)
	require.True(t, d.Success)
	d, err = set.For(ActionLogin).Limit(ctx, "a")
	require.NoError(t, err)
	require.False(t, d.Success)

	// Unconfigured actions are unlimited
	for i := 0; i < 5; i++ {
		d, err = set.For(ActionComment).Limit(ctx, "a")
		require.NoError(t, err)
		require.True(t, d.Success)
	}

	require.Equal(t, 0, set.Prune(time.Hour))

	var nilSet *Set
	d, err = nilSet.For(ActionLogin).Limit(ctx, "a")
	require.NoError(t, err)
	require.True(t, d.Success)
}
