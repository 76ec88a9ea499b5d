// Package client provides a typed HTTP client for the Inkwell API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// APIError is every failure a Client call can return. Transport failures
// carry Status 0 and the generic message.
type APIError struct {
	Status  int
	Type    auth.ErrorType
	Message string
	// WaitTime is the number of seconds before a retry can succeed
	WaitTime int
	Err      error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrorTypeOf returns the error_type of err, or Unknown when err is not an APIError
func ErrorTypeOf(err error) auth.ErrorType {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return auth.ErrorUnknown
}

// Client talks to one API server
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the access token sent on authenticated calls
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the API served at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the access token, typically after a successful login
func (c *Client) SetToken(token string) {
	c.token = token
}

// LoginResult is the answer to a login attempt that did not fail
type LoginResult struct {
	models.LoginResponse
	// VerificationSent means the email must be confirmed before signing in
	VerificationSent bool
	Message          string
}

// Login signs in with credentials and, on the second step, the emailed code
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*LoginResult, error) {
	var body json.RawMessage
	status, err := c.do(ctx, http.MethodPost, "/auth/login", req, &body)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{}
	if status == http.StatusAccepted {
		var msg models.SuccessResponse
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, decodeError(status, err)
		}
		result.VerificationSent = true
		result.Message = msg.Message
		return result, nil
	}
	if err := json.Unmarshal(body, &result.LoginResponse); err != nil {
		return nil, decodeError(status, err)
	}
	if result.AccessToken != "" {
		c.token = result.AccessToken
	}
	return result, nil
}

// ResendTwoFactor asks for a new sign-in code and returns its expiry
func (c *Client) ResendTwoFactor(ctx context.Context, email, password string) (time.Time, error) {
	var resp models.LoginResponse
	req := models.ResendTwoFactorRequest{Email: email, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/auth/two-factor/resend", req, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ExpiresAt), nil
}

// Register creates an account and returns the confirmation message
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	var resp models.SuccessResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResendVerification asks for a new confirmation email
func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	var resp models.SuccessResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/resend-verification", models.ResendVerificationRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// RequestPasswordReset emails a reset link to email
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var resp models.SuccessResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/reset-password", models.PasswordResetRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CompletePasswordReset sets a new password with an emailed token
func (c *Client) CompletePasswordReset(ctx context.Context, token, newPassword string) (string, error) {
	var resp models.SuccessResponse
	req := models.CompleteResetRequest{Token: token, NewPassword: newPassword}
	if _, err := c.do(ctx, http.MethodPost, "/auth/reset-password/complete", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// UpdateSettings changes the signed-in user's account
func (c *Client) UpdateSettings(ctx context.Context, req models.UpdateSettingsRequest) (*models.SettingsResponse, error) {
	var resp models.SettingsResponse
	if _, err := c.do(ctx, http.MethodPut, "/users/me/settings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends a JSON request below /api/v1 and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, transportError(err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/api/v1", path)
	if err != nil {
		return 0, transportError(err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, transportError(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, decodeError(resp.StatusCode, err)
		}
	}
	return resp.StatusCode, nil
}

// apiError reads the error body of resp. Bodies that do not parse fall back
// to the generic message.
func apiError(resp *http.Response) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Type:    auth.ErrorUnknown,
		Message: auth.GenericMessage,
	}

	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.ErrorType != "" {
			apiErr.Type = auth.ErrorType(body.ErrorType)
		}
		if body.Error != "" {
			apiErr.Message = body.Error
		}
		apiErr.WaitTime = body.WaitTimeSeconds
	}

	if apiErr.WaitTime == 0 {
		if retry, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && retry > 0 {
			apiErr.WaitTime = retry
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests && apiErr.Type == auth.ErrorUnknown {
		apiErr.Type = auth.ErrorRateLimited
	}
	return apiErr
}

func transportError(err error) *APIError {
	return &APIError{Type: auth.ErrorUnknown, Message: auth.GenericMessage, Err: err}
}

func decodeError(status int, err error) *APIError {
	return &APIError{Status: status, Type: auth.ErrorUnknown, Message: auth.GenericMessage, Err: err}
}
