package passcheck_test

import (
	"context"
	"errors"
	"inkwell/internal/passcheck"
	"inkwell/internal/pwned"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedChecker blocks each check until its password is released
type gatedChecker struct {
	mu          sync.Mutex
	gates       map[string]chan pwned.Result
	calls       []string
	compromised map[string]bool
}

func newGatedChecker() *gatedChecker {
	return &gatedChecker{
		gates:       make(map[string]chan pwned.Result),
		compromised: make(map[string]bool),
	}
}

func (g *gatedChecker) gate(password string) chan pwned.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[password]
	if !ok {
		ch = make(chan pwned.Result, 1)
		g.gates[password] = ch
	}
	return ch
}

func (g *gatedChecker) Check(ctx context.Context, password string) pwned.Result {
	g.mu.Lock()
	g.calls = append(g.calls, password)
	g.mu.Unlock()
	return <-g.gate(password)
}

func (g *gatedChecker) release(password string, result pwned.Result) {
	g.gate(password) <- result
}

func (g *gatedChecker) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func minLength(n int) passcheck.Validator {
	return func(password string) error {
		if len(password) < n {
			return errors.New("too short")
		}
		return nil
	}
}

func TestController_SkipsNetworkForInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "Empty Password", password: ""},
		{name: "Fails Local Validation", password: "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			checker := pwned.CheckerFunc(func(ctx context.Context, password string) pwned.Result {
				atomic.AddInt32(&calls, 1)
				return pwned.Result{}
			})
			c := passcheck.New(checker, minLength(8))

			require.Equal(t, passcheck.Unknown, c.Evaluate(context.Background(), tt.password))
			c.Wait()
			assert.Equal(t, passcheck.Unknown, c.Verdict())
			assert.Empty(t, c.Message())
			assert.False(t, c.Blocked())
			assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
		})
	}
}

func TestController_Verdicts(t *testing.T) {
	tests := []struct {
		name        string
		result      pwned.Result
		wantVerdict passcheck.Verdict
		wantBlocked bool
	}{
		{
			name:        "Compromised",
			result:      pwned.Result{IsCompromised: true},
			wantVerdict: passcheck.Compromised,
			wantBlocked: true,
		},
		{
			name:        "Secure",
			result:      pwned.Result{IsCompromised: false},
			wantVerdict: passcheck.Secure,
		},
		{
			name:        "Lookup Failure Fails Open",
			result:      pwned.Result{Err: errors.New("timeout")},
			wantVerdict: passcheck.Secure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newGatedChecker()
			var notified []passcheck.Verdict
			var mu sync.Mutex
			c := passcheck.New(checker, minLength(8), passcheck.WithNotifier(func(v passcheck.Verdict, msg string) {
				mu.Lock()
				defer mu.Unlock()
				notified = append(notified, v)
				assert.NotEmpty(t, msg)
			}))

			require.Equal(t, passcheck.Checking, c.Evaluate(context.Background(), "password123"))
			assert.True(t, c.Blocked())
			assert.Equal(t, "Checking password security...", c.Message())

			checker.release("password123", tt.result)
			c.Wait()

			assert.Equal(t, tt.wantVerdict, c.Verdict())
			assert.Equal(t, tt.wantBlocked, c.Blocked())
			assert.Equal(t, tt.result.Err, c.Err())
			mu.Lock()
			assert.Equal(t, []passcheck.Verdict{tt.wantVerdict}, notified)
			mu.Unlock()
		})
	}
}

func TestController_DiscardsStaleResults(t *testing.T) {
	checker := newGatedChecker()
	var notifications int32
	c := passcheck.New(checker, minLength(8), passcheck.WithNotifier(func(v passcheck.Verdict, msg string) {
		atomic.AddInt32(&notifications, 1)
	}))

	ctx := context.Background()
	candidates := []string{"password1", "password12", "password123"}
	for _, p := range candidates {
		c.Evaluate(ctx, p)
	}

	// Latest resolves first as secure, the first one resolves last as compromised
	checker.release("password123", pwned.Result{IsCompromised: false})
	checker.release("password12", pwned.Result{IsCompromised: true})
	checker.release("password1", pwned.Result{IsCompromised: true})
	c.Wait()

	require.Equal(t, passcheck.Secure, c.Verdict())
	require.Equal(t, int32(1), atomic.LoadInt32(&notifications))
	require.Equal(t, len(candidates), checker.callCount())
}

func TestController_InvalidInputSupersedesInflightCheck(t *testing.T) {
	checker := newGatedChecker()
	c := passcheck.New(checker, minLength(8))

	ctx := context.Background()
	c.Evaluate(ctx, "password123")
	c.Evaluate(ctx, "")

	checker.release("password123", pwned.Result{IsCompromised: true})
	c.Wait()

	require.Equal(t, passcheck.Unknown, c.Verdict())
}

func TestController_UpdateDebounces(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	checker := pwned.CheckerFunc(func(ctx context.Context, password string) pwned.Result {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, password)
		return pwned.Result{}
	})
	c := passcheck.New(checker, nil, passcheck.WithDebounce(50*time.Millisecond))

	ctx := context.Background()
	for _, p := range []string{"p", "pa", "pas", "pass", "passw0rd"} {
		c.Update(ctx, p)
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"passw0rd"}, seen)
	require.Equal(t, passcheck.Secure, c.Verdict())
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "unknown", passcheck.Unknown.String())
	assert.Equal(t, "checking", passcheck.Checking.String())
	assert.Equal(t, "compromised", passcheck.Compromised.String())
	assert.Equal(t, "secure", passcheck.Secure.String())
}
