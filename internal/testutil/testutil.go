// Package testutil provides utilities for testing
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"inkwell/internal/api/handlers"
	"inkwell/internal/api/routes"
	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/pwned"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"inkwell/internal/repository/memory"
	"inkwell/internal/validation"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Mail kinds recorded by MockMailer
const (
	MailVerification = "verification"
	MailReset        = "reset"
	MailTwoFactor    = "two-factor"
)

// Mail is one message captured by MockMailer. Token holds the link token or the sign-in code.
type Mail struct {
	Kind  string
	To    string
	Token string
}

// MockMailer records every email instead of sending it
type MockMailer struct {
	mu   sync.Mutex
	sent []Mail
}

func (m *MockMailer) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Mail{Kind: kind, To: to, Token: token})
	return nil
}

func (m *MockMailer) SendVerificationEmail(to, name, token string) error {
	return m.record(MailVerification, to, token)
}

func (m *MockMailer) SendPasswordResetEmail(to, name, token string) error {
	return m.record(MailReset, to, token)
}

func (m *MockMailer) SendTwoFactorCode(to, name, code string, expiresAt time.Time) error {
	return m.record(MailTwoFactor, to, code)
}

// Last returns the most recent mail of kind
func (m *MockMailer) Last(kind string) (Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return Mail{}, false
}

// Count returns how many mails of kind were sent
func (m *MockMailer) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mail := range m.sent {
		if mail.Kind == kind {
			n++
		}
	}
	return n
}

// TestContext holds common test dependencies
type TestContext struct {
	T             *testing.T
	Config        *config.Config
	Store         *memory.Store
	Repos         repository.Repositories
	AuthService   *auth.Service
	Authenticator *auth.Authenticator
	Mailer        *MockMailer
	// Compromised lists passwords the breach check reports as found
	Compromised map[string]bool
	// Limiters holds per-action budgets; nil leaves every action unlimited
	Limiters      *ratelimit.Set
	GlobalLimiter ratelimit.Limiter
	Jobs          handlers.JobRunner
	// OAuthProviders are mounted under /auth/oauth/:provider
	OAuthProviders map[string]auth.OAuthProvider
}

// TestConfig returns a configuration that needs no environment
func TestConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Port:    "8080",
			BaseURL: "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
			RegistrationOpen:     true,
			TwoFactorTTL:         5 * time.Minute,
			VerificationTTL:      24 * time.Hour,
			ResetTTL:             time.Hour,
		},
		Database: config.DatabaseConfig{Driver: "memory"},
		RateLimit: config.RateLimitConfig{
			Backend:  "memory",
			Enabled:  true,
			Requests: 1000,
			Window:   60,
		},
	}
}

// NewTestContext creates a new test context backed by the in-memory store
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	// Set Gin to test mode
	gin.SetMode(gin.TestMode)

	// Initialize validators
	validation.Initialize()

	cfg := TestConfig()
	store := memory.NewStore()

	tc := &TestContext{
		T:           t,
		Config:      cfg,
		Store:       store,
		Repos:       store.Repositories(),
		Mailer:      &MockMailer{},
		Compromised: map[string]bool{},
	}

	tc.Rewire()

	return tc
}

// Rewire rebuilds the auth services from the current Config and Repos
func (tc *TestContext) Rewire() {
	checker := pwned.CheckerFunc(func(ctx context.Context, password string) pwned.Result {
		return pwned.Result{IsCompromised: tc.Compromised[password]}
	})

	tc.AuthService = auth.NewService(tc.Config.Auth, tc.Repos.RefreshTokens)
	tc.Authenticator = auth.NewAuthenticator(
		tc.Config.Auth,
		tc.Repos.Users,
		tc.Repos.Accounts,
		tc.Repos.Verifications,
		tc.Repos.Resets,
		tc.Repos.TwoFactor,
		tc.AuthService,
		tc.Mailer,
		checker,
	)
}

// SetLimits installs in-memory budgets for the given actions
func (tc *TestContext) SetLimits(policies map[string]ratelimit.Policy) {
	tc.Limiters = ratelimit.NewSet(ratelimit.MemoryFactory(), policies)
}

// Router builds the full API router over the test dependencies
func (tc *TestContext) Router() *gin.Engine {
	return routes.SetupRoutes(routes.Dependencies{
		Config:         tc.Config,
		Repos:          tc.Repos,
		Authenticator:  tc.Authenticator,
		OAuthProviders: tc.OAuthProviders,
		GlobalLimiter:  tc.GlobalLimiter,
		Limiters:       tc.Limiters,
		Jobs:           tc.Jobs,
	})
}

// CreateTestUser creates a verified credentials user with the given details
func (tc *TestContext) CreateTestUser(name, email, password string, role models.Role) *models.User {
	tc.T.Helper()

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(tc.T, err, "Failed to hash password")
	hashed := string(hashedPassword)

	now := time.Now()
	user := &models.User{
		Name:            name,
		Email:           email,
		EmailVerifiedAt: &now,
		Password:        &hashed,
		Role:            role,
	}

	// Save the user
	err = tc.Repos.Users.Create(context.Background(), user)
	require.NoError(tc.T, err, "Failed to create test user")

	return user
}

// CreateTestPost stores a post by author in status
func (tc *TestContext) CreateTestPost(author *models.User, title string, status models.PostStatus) *models.Post {
	tc.T.Helper()

	post := &models.Post{
		AuthorID: author.ID,
		Title:    title,
		Slug:     strings.ToLower(strings.Join(strings.Fields(title), "-")) + "-" + xid.New().String(),
		Excerpt:  "Excerpt of " + title,
		Content:  "Content of " + title,
		Status:   status,
	}
	if status == models.PostStatusPublished {
		now := time.Now()
		post.PublishedAt = &now
	}

	err := tc.Repos.Posts.Create(context.Background(), post)
	require.NoError(tc.T, err, "Failed to create test post")

	return post
}

// GetTestJWT returns an access token for userID
func (tc *TestContext) GetTestJWT(userID uuid.UUID) string {
	tc.T.Helper()

	user, err := tc.Repos.Users.GetByID(context.Background(), userID)
	if err != nil {
		user = &models.User{ID: userID, Role: models.RoleUser}
	}

	token, _, err := tc.AuthService.GenerateAccessToken(user)
	require.NoError(tc.T, err, "Failed to generate test JWT")
	return token
}

// Request sends a JSON request through router. body may be nil, a string of
// raw JSON or any value to marshal.
func Request(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, path, bytes.NewReader(payload))
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Decode unmarshals the recorded body into a value of type T
func Decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}
