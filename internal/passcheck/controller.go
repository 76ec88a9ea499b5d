// Package passcheck runs debounced breach checks for a password field and
// keeps a single live verdict no matter in which order checks resolve.
package passcheck

import (
	"context"
	"inkwell/internal/pwned"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period Update waits for before checking
const DefaultDebounce = 500 * time.Millisecond

// Verdict is the security status of the current password candidate
type Verdict int

const (
	Unknown Verdict = iota
	Checking
	Compromised
	Secure
)

func (v Verdict) String() string {
	switch v {
	case Checking:
		return "checking"
	case Compromised:
		return "compromised"
	case Secure:
		return "secure"
	default:
		return "unknown"
	}
}

// Validator is the local field rule a candidate must pass before any network call
type Validator func(password string) error

// Notifier receives the one-shot notification for a settled verdict
type Notifier func(verdict Verdict, message string)

// Controller owns the verdict for one password field
type Controller struct {
	checker  pwned.Checker
	validate Validator
	debounce time.Duration
	notify   Notifier

	mu        sync.Mutex
	requestID uint64
	verdict   Verdict
	lastErr   error
	timer     *time.Timer
	inflight  sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithNotifier sets the callback fired once per settled check
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notify = n
	}
}

// New creates a controller. A nil validator accepts every non-empty password.
func New(checker pwned.Checker, validate Validator, opts ...Option) *Controller {
	c := &Controller{
		checker:  checker,
		validate: validate,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update records a keystroke-level change. The check runs once input has
// been quiet for the debounce period; earlier pending updates are dropped.
func (c *Controller) Update(ctx context.Context, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil && c.timer.Stop() {
		c.inflight.Done()
	}
	c.inflight.Add(1)
	c.timer = time.AfterFunc(c.debounce, func() {
		defer c.inflight.Done()
		c.Evaluate(ctx, password)
	})
}

// Evaluate checks the password immediately. It returns the verdict set
// synchronously: Unknown when no check was started, Checking otherwise.
func (c *Controller) Evaluate(ctx context.Context, password string) Verdict {
	if password == "" {
		return c.settleLocal()
	}
	if c.validate != nil {
		if err := c.validate(password); err != nil {
			return c.settleLocal()
		}
	}

	c.mu.Lock()
	c.requestID++
	id := c.requestID
	c.verdict = Checking
	c.lastErr = nil
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		result := c.checker.Check(ctx, password)
		c.apply(id, result)
	}()
	return Checking
}

// settleLocal drops to Unknown and invalidates any in-flight check
func (c *Controller) settleLocal() Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestID++
	c.verdict = Unknown
	c.lastErr = nil
	return Unknown
}

func (c *Controller) apply(id uint64, result pwned.Result) {
	c.mu.Lock()
	if id != c.requestID {
		c.mu.Unlock()
		return
	}
	if result.IsCompromised {
		c.verdict = Compromised
	} else {
		c.verdict = Secure
	}
	c.lastErr = result.Err
	verdict := c.verdict
	notify := c.notify
	c.mu.Unlock()

	if notify != nil {
		notify(verdict, MessageFor(verdict))
	}
}

// Verdict returns the live verdict
func (c *Controller) Verdict() Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verdict
}

// Message returns the status text for the live verdict
func (c *Controller) Message() string {
	return MessageFor(c.Verdict())
}

// Err returns the lookup error behind the last Secure verdict, if the check failed open
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Blocked reports whether submission should be held back
func (c *Controller) Blocked() bool {
	v := c.Verdict()
	return v == Checking || v == Compromised
}

// Wait blocks until pending debounced updates and in-flight checks have finished
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// MessageFor returns the user-facing text for a verdict
func MessageFor(v Verdict) string {
	switch v {
	case Checking:
		return "Checking password security..."
	case Compromised:
		return "This password has appeared in a data breach. Please choose a different password."
	case Secure:
		return "This password has not been found in any known data breaches."
	default:
		return ""
	}
}
