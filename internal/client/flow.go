package client

import (
	"context"
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/countdown"
	"inkwell/internal/models"
	"time"
)

var (
	// ErrCodeExpired is returned without a network call when the challenge countdown has run out
	ErrCodeExpired = errors.New("code expired, request a new one")
	// ErrNoChallenge is returned when no two-factor challenge is pending
	ErrNoChallenge = errors.New("no two-factor challenge pending")
	// ErrWaiting is returned without a network call while a rate-limit wait is running
	ErrWaiting = errors.New("too many attempts, wait before retrying")
)

// Stage is where a LoginFlow stands
type Stage int

const (
	StageCredentials Stage = iota
	StageCode
	StageVerification
	StageDone
)

// LoginFlow drives the two-step sign-in. It keeps the code countdown and the
// rate-limit wait locally so the caller can render them and so doomed
// requests are never sent.
type LoginFlow struct {
	client   *Client
	email    string
	password string

	code *countdown.Counter
	wait *countdown.Counter

	stage  Stage
	tokens models.LoginResponse
}

// NewLoginFlow starts a flow for the given credentials. opts apply to both countdowns.
func NewLoginFlow(c *Client, email, password string, opts ...countdown.Option) *LoginFlow {
	return &LoginFlow{
		client:   c,
		email:    email,
		password: password,
		code:     countdown.New(0, opts...),
		wait:     countdown.New(0, opts...),
	}
}

// Stage returns the current stage
func (f *LoginFlow) Stage() Stage {
	return f.stage
}

// Tokens returns the session once the flow is done
func (f *LoginFlow) Tokens() models.LoginResponse {
	return f.tokens
}

// Code is the countdown of the pending challenge
func (f *LoginFlow) Code() *countdown.Counter {
	return f.code
}

// Wait is the countdown of the current rate-limit wait
func (f *LoginFlow) Wait() *countdown.Counter {
	return f.wait
}

// CanSubmit reports whether no rate-limit wait is running
func (f *LoginFlow) CanSubmit() bool {
	f.wait.Tick()
	return f.wait.IsExpired()
}

// Submit sends the credentials. With two-factor enabled it arms the code
// countdown from the server's expiry and moves to StageCode.
func (f *LoginFlow) Submit(ctx context.Context) (Stage, error) {
	if !f.CanSubmit() {
		return f.stage, ErrWaiting
	}

	result, err := f.client.Login(ctx, models.LoginRequest{Email: f.email, Password: f.password})
	if err != nil {
		f.reject(err)
		return f.stage, err
	}
	return f.advance(result), nil
}

// SubmitCode sends the emailed code. An expired countdown fails locally.
func (f *LoginFlow) SubmitCode(ctx context.Context, code string) (Stage, error) {
	if f.stage != StageCode {
		return f.stage, ErrNoChallenge
	}
	f.code.Tick()
	if f.code.IsExpired() {
		return f.stage, ErrCodeExpired
	}
	if !f.CanSubmit() {
		return f.stage, ErrWaiting
	}

	result, err := f.client.Login(ctx, models.LoginRequest{Email: f.email, Password: f.password, Code: code})
	if err != nil {
		if ErrorTypeOf(err) == auth.ErrorCodeExpired {
			f.code.Reset(0)
		}
		f.reject(err)
		return f.stage, err
	}
	return f.advance(result), nil
}

// Resend asks for a new code. It does nothing while the current code is
// still valid and reports whether a request was made.
func (f *LoginFlow) Resend(ctx context.Context) (bool, error) {
	if f.stage != StageCode {
		return false, ErrNoChallenge
	}
	f.code.Tick()
	if !f.code.IsExpired() {
		return false, nil
	}
	if !f.CanSubmit() {
		return false, ErrWaiting
	}

	expiresAt, err := f.client.ResendTwoFactor(ctx, f.email, f.password)
	if err != nil {
		f.reject(err)
		return true, err
	}
	f.code.StartUntil(expiresAt)
	return true, nil
}

func (f *LoginFlow) advance(result *LoginResult) Stage {
	switch {
	case result.VerificationSent:
		f.stage = StageVerification
	case result.TwoFactor:
		f.code.StartUntil(time.UnixMilli(result.ExpiresAt))
		f.stage = StageCode
	default:
		f.tokens = result.LoginResponse
		f.stage = StageDone
	}
	return f.stage
}

// reject arms the local countdowns from a server rejection
func (f *LoginFlow) reject(err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.WaitTime <= 0 {
		return
	}
	switch apiErr.Type {
	case auth.ErrorRateLimited:
		f.wait.Start(apiErr.WaitTime)
	case auth.ErrorChallengeActive:
		// the server still holds a live code
		f.code.Start(apiErr.WaitTime)
	}
}
