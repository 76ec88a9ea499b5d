// Package ratelimit decides whether an identifier may perform an action
// and tells rejected callers how long to wait.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrBackendUnavailable wraps failures of the counter store
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// Policy is a budget of Requests per Window
type Policy struct {
	Requests int
	Window   time.Duration
}

func (p Policy) String() string {
	return fmt.Sprintf("%d/%s", p.Requests, p.Window)
}

// Decision is the outcome of a single Limit call
type Decision struct {
	Success   bool
	Limit     int
	Remaining int
	// Reset is when the budget for this identifier is replenished
	Reset time.Time
}

// WaitTime returns the whole seconds the caller must wait before retrying
func (d Decision) WaitTime(now time.Time) int {
	if d.Success {
		return 0
	}
	return WaitTimeSeconds(d.Reset, now)
}

// Limiter consumes one unit of budget for an identifier
type Limiter interface {
	Limit(ctx context.Context, identifier string) (Decision, error)
}

// Pruner is implemented by limiters holding per-identifier state in process
type Pruner interface {
	Prune(idle time.Duration) int
}

// WaitTimeSeconds is ceil((reset-now)/1s), never negative
func WaitTimeSeconds(reset, now time.Time) int {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Key builds an identifier such as "login:203.0.113.7:ada@example.com".
// Empty parts are skipped and parts are lowercased.
func Key(action string, parts ...string) string {
	var b strings.Builder
	b.WriteString(action)
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Unlimited allows every request
type Unlimited struct{}

// Limit always succeeds
func (Unlimited) Limit(ctx context.Context, identifier string) (Decision, error) {
	return Decision{Success: true, Reset: time.Now()}, nil
}

type failOpen struct {
	next Limiter
	name string
}

// FailOpen wraps a limiter so backend errors allow the request and are logged
func FailOpen(name string, next Limiter) Limiter {
	return &failOpen{next: next, name: name}
}

func (f *failOpen) Limit(ctx context.Context, identifier string) (Decision, error) {
	d, err := f.next.Limit(ctx, identifier)
	if err != nil {
		log.Printf("Rate limiter %s failed, allowing request: %v", f.name, err)
		return Decision{Success: true, Reset: time.Now()}, nil
	}
	return d, nil
}

func (f *failOpen) Prune(idle time.Duration) int {
	if p, ok := f.next.(Pruner); ok {
		return p.Prune(idle)
	}
	return 0
}

// Action names used to namespace identifiers and pick budgets
const (
	ActionGlobal       = "global"
	ActionLogin        = "login"
	ActionRegister     = "register"
	ActionReset        = "reset-password"
	ActionComment      = "comment"
	ActionVerification = "verification"
	ActionTwoFactor    = "two-factor"
)

// Set holds one limiter per action
type Set struct {
	limiters map[string]Limiter
}

// Factory creates a limiter for a named action
type Factory func(action string, policy Policy) Limiter

// NewSet builds fail-open limiters for every action in policies
func NewSet(factory Factory, policies map[string]Policy) *Set {
	s := &Set{limiters: make(map[string]Limiter, len(policies))}
	for action, policy := range policies {
		s.limiters[action] = FailOpen(action, factory(action, policy))
	}
	return s
}

// For returns the limiter for an action, or Unlimited when none is configured
func (s *Set) For(action string) Limiter {
	if s == nil {
		return Unlimited{}
	}
	if l, ok := s.limiters[action]; ok {
		return l
	}
	return Unlimited{}
}

// Prune drops idle in-process state from every limiter that holds any
func (s *Set) Prune(idle time.Duration) int {
	if s == nil {
		return 0
	}
	removed := 0
	for _, l := range s.limiters {
		if p, ok := l.(Pruner); ok {
			removed += p.Prune(idle)
		}
	}
	return removed
}
