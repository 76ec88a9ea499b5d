package client_test

import (
	"context"
	"inkwell/internal/auth"
	"inkwell/internal/client"
	"inkwell/internal/countdown"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/testutil"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// twoFactorServer serves a user with two-factor enabled. The server and the
// returned clock move together.
func twoFactorServer(t *testing.T) (*apiServer, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := newAPIServer(t, func(tc *testutil.TestContext) {
		user := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
		user.IsTwoFactorEnabled = true
		require.NoError(t, tc.Repos.Users.Update(context.Background(), user))
		tc.Authenticator.SetClock(clock.Now)
	})
	return s, clock
}

func newFlow(s *apiServer, clock *fakeClock, password string) *client.LoginFlow {
	return client.NewLoginFlow(s.client(), "ada@example.com", password, countdown.WithClock(clock.Now))
}

func TestLoginFlow_TwoFactor(t *testing.T) {
	s, clock := twoFactorServer(t)
	flow := newFlow(s, clock, "analytical1843")
	ctx := context.Background()

	stage, err := flow.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.StageCode, stage)
	assert.Equal(t, countdown.Active, flow.Code().State())
	assert.InDelta(t, 300, flow.Code().Remaining(), 1)

	stage, err = flow.SubmitCode(ctx, "000000")
	assert.Equal(t, auth.ErrorInvalidCode, client.ErrorTypeOf(err))
	assert.Equal(t, client.StageCode, stage)

	mail, ok := s.tc.Mailer.Last(testutil.MailTwoFactor)
	require.True(t, ok)
	stage, err = flow.SubmitCode(ctx, mail.Token)
	require.NoError(t, err)
	assert.Equal(t, client.StageDone, stage)
	assert.NotEmpty(t, flow.Tokens().AccessToken)
}

func TestLoginFlow_ExpiredCodeBlockedLocally(t *testing.T) {
	s, clock := twoFactorServer(t)
	flow := newFlow(s, clock, "analytical1843")
	ctx := context.Background()

	_, err := flow.Submit(ctx)
	require.NoError(t, err)
	mail, ok := s.tc.Mailer.Last(testutil.MailTwoFactor)
	require.True(t, ok)

	clock.Advance(6 * time.Minute)
	calls := s.calls.Load()

	_, err = flow.SubmitCode(ctx, mail.Token)
	assert.ErrorIs(t, err, client.ErrCodeExpired)
	assert.Equal(t, calls, s.calls.Load())
	assert.True(t, flow.Code().IsExpired())
}

func TestLoginFlow_Resend(t *testing.T) {
	s, clock := twoFactorServer(t)
	flow := newFlow(s, clock, "analytical1843")
	ctx := context.Background()

	_, err := flow.Resend(ctx)
	assert.ErrorIs(t, err, client.ErrNoChallenge)

	_, err = flow.Submit(ctx)
	require.NoError(t, err)
	calls := s.calls.Load()

	sent, err := flow.Resend(ctx)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, calls, s.calls.Load())
	assert.Equal(t, 1, s.tc.Mailer.Count(testutil.MailTwoFactor))

	clock.Advance(6 * time.Minute)
	sent, err = flow.Resend(ctx)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, calls+1, s.calls.Load())
	assert.Equal(t, 2, s.tc.Mailer.Count(testutil.MailTwoFactor))
	assert.Equal(t, countdown.Active, flow.Code().State())

	mail, ok := s.tc.Mailer.Last(testutil.MailTwoFactor)
	require.True(t, ok)
	stage, err := flow.SubmitCode(ctx, mail.Token)
	require.NoError(t, err)
	assert.Equal(t, client.StageDone, stage)
}

func TestLoginFlow_ChallengeActiveRearmsCode(t *testing.T) {
	s, clock := twoFactorServer(t)
	flow := newFlow(s, clock, "analytical1843")
	ctx := context.Background()

	_, err := flow.Submit(ctx)
	require.NoError(t, err)

	// Local countdown runs out while the server still holds the code
	clock.Advance(2 * time.Minute)
	flow.Code().Reset(0)

	sent, err := flow.Resend(ctx)
	assert.True(t, sent)
	assert.Equal(t, auth.ErrorChallengeActive, client.ErrorTypeOf(err))
	assert.Equal(t, countdown.Active, flow.Code().State())
	assert.InDelta(t, 180, flow.Code().Remaining(), 1)
	assert.Equal(t, 1, s.tc.Mailer.Count(testutil.MailTwoFactor))
}

func TestLoginFlow_RateLimitArmsWait(t *testing.T) {
	clock := newFakeClock()
	s := newAPIServer(t, func(tc *testutil.TestContext) {
		tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
		tc.SetLimits(map[string]ratelimit.Policy{
			ratelimit.ActionLogin: {Requests: 1, Window: time.Minute},
		})
	})
	flow := newFlow(s, clock, "wrong-password1")
	ctx := context.Background()

	assert.True(t, flow.CanSubmit())

	_, err := flow.Submit(ctx)
	assert.Equal(t, auth.ErrorCredentialsSignin, client.ErrorTypeOf(err))
	assert.True(t, flow.CanSubmit())

	_, err = flow.Submit(ctx)
	assert.Equal(t, auth.ErrorRateLimited, client.ErrorTypeOf(err))
	assert.False(t, flow.CanSubmit())
	assert.Positive(t, flow.Wait().Remaining())

	calls := s.calls.Load()
	_, err = flow.Submit(ctx)
	assert.ErrorIs(t, err, client.ErrWaiting)
	assert.Equal(t, calls, s.calls.Load())

	clock.Advance(2 * time.Minute)
	assert.True(t, flow.CanSubmit())
}

// denyFor rejects every request with a budget that resets after a fixed delay
type denyFor time.Duration

func (d denyFor) Limit(ctx context.Context, identifier string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Success: false, Reset: time.Now().Add(time.Duration(d))}, nil
}

func TestLoginFlow_RateLimitWaitRoundsUp(t *testing.T) {
	s := newAPIServer(t, func(tc *testutil.TestContext) {
		tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
		tc.Limiters = ratelimit.NewSet(
			func(string, ratelimit.Policy) ratelimit.Limiter { return denyFor(1500 * time.Millisecond) },
			map[string]ratelimit.Policy{ratelimit.ActionLogin: {Requests: 1, Window: time.Minute}},
		)
	})

	w := testutil.Request(t, s.tc.Router(), http.MethodPost, "/api/v1/auth/login",
		models.LoginRequest{Email: "ada@example.com", Password: "analytical1843"}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := testutil.Decode[models.ErrorResponse](t, w)
	assert.Equal(t, string(auth.ErrorRateLimited), resp.ErrorType)
	assert.Equal(t, 2, resp.WaitTimeSeconds)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	flow := newFlow(s, newFakeClock(), "analytical1843")
	_, err := flow.Submit(context.Background())
	assert.Equal(t, auth.ErrorRateLimited, client.ErrorTypeOf(err))
	assert.Equal(t, 2, flow.Wait().Remaining())
	assert.Equal(t, "00:02", flow.Wait().String())
	assert.False(t, flow.CanSubmit())
}

func TestLoginFlow_VerificationSent(t *testing.T) {
	clock := newFakeClock()
	s := newAPIServer(t, func(tc *testutil.TestContext) {
		user := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
		user.EmailVerifiedAt = nil
		require.NoError(t, tc.Repos.Users.Update(context.Background(), user))
	})
	flow := newFlow(s, clock, "analytical1843")

	stage, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, client.StageVerification, stage)

	_, err = flow.SubmitCode(context.Background(), "123456")
	assert.ErrorIs(t, err, client.ErrNoChallenge)
}
