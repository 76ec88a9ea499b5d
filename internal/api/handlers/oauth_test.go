package handlers_test

import (
	"context"
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/testutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider accepts the code "good" and returns its profile
type stubProvider struct {
	profile auth.OAuthProfile
}

func (p *stubProvider) Name() string { return p.profile.Provider }

func (p *stubProvider) AuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *stubProvider) Exchange(ctx context.Context, code string) (*auth.OAuthProfile, error) {
	if code != "good" {
		return nil, errors.New("bad code")
	}
	profile := p.profile
	return &profile, nil
}

func newOAuthContext(t *testing.T, redirectURL string) *testutil.TestContext {
	tc := testutil.NewTestContext(t)
	tc.Config.OAuth.RedirectURL = redirectURL
	tc.OAuthProviders = map[string]auth.OAuthProvider{
		"github": &stubProvider{profile: auth.OAuthProfile{
			Provider:  "github",
			AccountID: "42",
			Email:     "ada@example.com",
			Name:      "Ada",
		}},
	}
	return tc
}

// beginOAuth starts the flow and returns the state cookie
func beginOAuth(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()
	w := testutil.Request(t, router, http.MethodGet, "/api/v1/auth/oauth/github", nil, "")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "oauth_state" {
			location, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, cookie.Value, location.Query().Get("state"))
			assert.True(t, cookie.HttpOnly)
			return cookie
		}
	}
	t.Fatal("state cookie not set")
	return nil
}

func callback(router http.Handler, query string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/auth/oauth/github/callback"+query, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOAuthHandler_Callback(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(*testutil.TestContext)
		query      func(state string) string
		noCookie   bool
		wantStatus int
		wantType   auth.ErrorType
		errMsg     string
	}{
		{
			name:       "Success Creates Verified User",
			query:      func(state string) string { return "?code=good&state=" + state },
			wantStatus: http.StatusOK,
		},
		{
			name: "Linked Account Signs In",
			setupFunc: func(tc *testutil.TestContext) {
				user := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
				require.NoError(tc.T, tc.Repos.Accounts.Create(context.Background(), &models.Account{
					UserID: user.ID, Provider: "github", ProviderAccountID: "42",
				}))
			},
			query:      func(state string) string { return "?code=good&state=" + state },
			wantStatus: http.StatusOK,
		},
		{
			name: "Email Taken By Credentials Account",
			setupFunc: func(tc *testutil.TestContext) {
				tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
			},
			query:      func(state string) string { return "?code=good&state=" + state },
			wantStatus: http.StatusConflict,
			wantType:   auth.ErrorOAuthAccountNotLinked,
		},
		{
			name:       "State Mismatch",
			query:      func(state string) string { return "?code=good&state=forged" },
			wantStatus: http.StatusBadRequest,
			errMsg:     "invalid oauth state",
		},
		{
			name:       "Missing Cookie",
			query:      func(state string) string { return "?code=good&state=" + state },
			noCookie:   true,
			wantStatus: http.StatusBadRequest,
			errMsg:     "invalid oauth state",
		},
		{
			name:       "Provider Denied",
			query:      func(state string) string { return "?error=access_denied&state=" + state },
			wantStatus: http.StatusUnauthorized,
			wantType:   auth.ErrorCredentialsSignin,
		},
		{
			name:       "Missing Code",
			query:      func(state string) string { return "?state=" + state },
			wantStatus: http.StatusBadRequest,
			errMsg:     "missing authorization code",
		},
		{
			name:       "Exchange Fails",
			query:      func(state string) string { return "?code=bad&state=" + state },
			wantStatus: http.StatusInternalServerError,
			wantType:   auth.ErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newOAuthContext(t, "")
			if tt.setupFunc != nil {
				tt.setupFunc(tc)
			}
			router := tc.Router()

			cookie := beginOAuth(t, router)
			sent := cookie
			if tt.noCookie {
				sent = nil
			}

			w := callback(router, tt.query(url.QueryEscape(cookie.Value)), sent)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus != http.StatusOK {
				resp := testutil.Decode[models.ErrorResponse](t, w)
				assert.Equal(t, string(tt.wantType), resp.ErrorType)
				if tt.errMsg != "" {
					assert.Equal(t, tt.errMsg, resp.Error)
				}
				return
			}

			resp := testutil.Decode[models.LoginResponse](t, w)
			assert.NotEmpty(t, resp.AccessToken)
			assert.NotEmpty(t, resp.RefreshToken)

			user, err := tc.Repos.Users.GetByEmail(context.Background(), "ada@example.com")
			require.NoError(t, err)
			assert.True(t, user.IsEmailVerified())
		})
	}
}

func TestOAuthHandler_Redirects(t *testing.T) {
	const app = "https://app.example.com/signed-in"

	t.Run("Tokens In Fragment", func(t *testing.T) {
		tc := newOAuthContext(t, app)
		router := tc.Router()
		cookie := beginOAuth(t, router)

		w := callback(router, "?code=good&state="+url.QueryEscape(cookie.Value), cookie)
		require.Equal(t, http.StatusFound, w.Code)

		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", location.Host)
		fragment, err := url.ParseQuery(location.Fragment)
		require.NoError(t, err)
		assert.NotEmpty(t, fragment.Get("access_token"))
		assert.NotEmpty(t, fragment.Get("refresh_token"))
	})

	t.Run("Typed Error In Query", func(t *testing.T) {
		tc := newOAuthContext(t, app)
		tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
		router := tc.Router()
		cookie := beginOAuth(t, router)

		w := callback(router, "?code=good&state="+url.QueryEscape(cookie.Value), cookie)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, app+"?error=OAuthAccountNotLinked", w.Header().Get("Location"))
	})
}

func TestOAuthHandler_UnknownProvider(t *testing.T) {
	tc := newOAuthContext(t, "")
	w := testutil.Request(t, tc.Router(), http.MethodGet, "/api/v1/auth/oauth/myspace", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
