// Package countdown tracks a time-boxed token (a two-factor challenge, a
// resend cooldown, a rate-limit wait) against its absolute expiry.
package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a Counter
type State int

const (
	// Inactive means the countdown is stopped; Remaining is frozen
	Inactive State = iota
	// Active means the countdown is running toward its expiry
	Active
	// Expired means the countdown reached zero
	Expired
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Counter is a one-second resolution countdown. Remaining time is always
// recomputed from the absolute expiry, so a process that was suspended
// catches up on the next tick instead of drifting.
type Counter struct {
	mu         sync.Mutex
	now        func() time.Time
	interval   time.Duration
	onComplete func()

	state     State
	expiresAt time.Time
	remaining int
	fired     bool
}

// Option configures a Counter
type Option func(*Counter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// WithInterval overrides the tick interval used by Run
func WithInterval(d time.Duration) Option {
	return func(c *Counter) {
		c.interval = d
	}
}

// OnComplete registers a callback fired once per activation when the countdown expires
func OnComplete(fn func()) Option {
	return func(c *Counter) {
		c.onComplete = fn
	}
}

// New creates a counter. Zero or negative seconds start in Expired with
// nothing remaining; a positive value starts Active.
func New(seconds int, opts ...Option) *Counter {
	c := &Counter{
		now:      time.Now,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if seconds > 0 {
		c.arm(seconds)
	} else {
		c.state = Expired
		c.fired = true
	}
	return c
}

// Start arms the countdown with the given duration in seconds
func (c *Counter) Start(seconds int) {
	c.Reset(seconds)
}

// StartUntil arms the countdown from an absolute expiry timestamp
func (c *Counter) StartUntil(expiresAt time.Time) {
	c.Reset(SecondsUntil(expiresAt, c.now()))
}

// Reset re-arms the countdown. Zero collapses straight to Expired.
func (c *Counter) Reset(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds <= 0 {
		c.state = Expired
		c.remaining = 0
		c.expiresAt = c.now()
		c.fired = true
		return
	}
	c.arm(seconds)
}

// Stop freezes the countdown without clearing the remaining time
func (c *Counter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Active {
		c.state = Inactive
	}
}

// Tick recomputes the remaining time. It returns the remaining seconds.
func (c *Counter) Tick() int {
	c.mu.Lock()
	if c.state != Active {
		remaining := c.remaining
		c.mu.Unlock()
		return remaining
	}

	left := ceilSeconds(c.expiresAt.Sub(c.now()))
	// Remaining never grows within one activation
	if left < c.remaining {
		c.remaining = left
	}

	var callback func()
	if c.remaining == 0 {
		c.state = Expired
		if !c.fired {
			c.fired = true
			callback = c.onComplete
		}
	}
	remaining := c.remaining
	c.mu.Unlock()

	if callback != nil {
		callback()
	}
	return remaining
}

// Run ticks the counter until the context is cancelled
func (c *Counter) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Remaining returns the remaining whole seconds
func (c *Counter) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// State returns the current lifecycle state
func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsExpired reports whether the countdown has reached zero
func (c *Counter) IsExpired() bool {
	return c.State() == Expired
}

// ExpiresAt returns the absolute expiry of the current activation
func (c *Counter) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// String renders the remaining time as MM:SS
func (c *Counter) String() string {
	return FormatTime(c.Remaining())
}

// arm must be called with the lock held (or before the counter is shared)
func (c *Counter) arm(seconds int) {
	c.state = Active
	c.remaining = seconds
	c.expiresAt = c.now().Add(time.Duration(seconds) * time.Second)
	c.fired = false
}

// SecondsUntil returns the whole seconds between now and expiresAt, floored and never negative
func SecondsUntil(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// FormatTime renders seconds as zero-padded MM:SS. Minutes are not wrapped into hours.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
