// Package pwned checks passwords against the Have I Been Pwned range API
// using k-anonymity: only the first five hex characters of the SHA-1 digest
// ever leave the process.
package pwned

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public range API endpoint
	DefaultBaseURL = "https://api.pwnedpasswords.com"
	// DefaultUserAgent identifies the application to the API
	DefaultUserAgent = "inkwell"

	prefixLength = 5
)

var (
	// ErrEmptyResponse is reported when the API answered with no records
	ErrEmptyResponse = errors.New("empty range response")
	// ErrUnexpectedStatus is reported for any non-2xx response
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Result is the outcome of a breach check. Err is informational only:
// a failed lookup always reports IsCompromised=false.
type Result struct {
	IsCompromised bool
	Err           error
}

// Error returns the failure description, or an empty string.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Checker is implemented by anything that can tell whether a password is breached.
type Checker interface {
	Check(ctx context.Context, password string) Result
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc func(ctx context.Context, password string) Result

// Check calls f(ctx, password)
func (f CheckerFunc) Check(ctx context.Context, password string) Result {
	return f(ctx, password)
}

// Config contains client settings
type Config struct {
	// BaseURL of the range API, without the /range suffix
	BaseURL string
	// UserAgent sent with every request
	UserAgent string
	// Timeout bounds a single lookup
	Timeout time.Duration
}

// Client queries the range API
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewClient creates a new range API client, filling in defaults for empty fields
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// HashPassword returns the uppercase hex SHA-1 digest of the exact password bytes
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SplitHash splits a 40 character digest into its 5 character prefix and 35 character suffix
func SplitHash(hash string) (prefix, suffix string) {
	return hash[:prefixLength], hash[prefixLength:]
}

// Check reports whether the password appears in the breach corpus.
// Lookup failures fail open.
func (c *Client) Check(ctx context.Context, password string) Result {
	prefix, suffix := SplitHash(HashPassword(password))

	found, err := c.lookup(ctx, prefix, suffix)
	if err != nil {
		return Result{IsCompromised: false, Err: err}
	}
	return Result{IsCompromised: found}
}

func (c *Client) lookup(ctx context.Context, prefix, suffix string) (bool, error) {
	reqURL := fmt.Sprintf("%s/range/%s", c.baseURL, prefix)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query range %s: %w", prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return matchSuffix(resp.Body, suffix)
}

// matchSuffix scans SUFFIX:COUNT records for the given suffix
func matchSuffix(body io.Reader, suffix string) (bool, error) {
	scanner := bufio.NewScanner(body)
	records := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		records++

		// The count is not consulted: a listed suffix is a match
		candidate, _, _ := strings.Cut(line, ":")
		if strings.EqualFold(strings.TrimSpace(candidate), suffix) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read range response: %w", err)
	}
	if records == 0 {
		return false, ErrEmptyResponse
	}
	return false, nil
}
