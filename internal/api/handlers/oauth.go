package handlers

import (
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 10 * time.Minute
)

// OAuthHandler handles sign-in through third-party providers
type OAuthHandler struct {
	providers   map[string]auth.OAuthProvider
	authn       *auth.Authenticator
	audit       auditor
	redirectURL string
	secure      bool
}

// NewOAuthHandler creates a handler for the configured providers. When
// redirectURL is empty the callback answers with JSON instead of redirecting.
func NewOAuthHandler(providers map[string]auth.OAuthProvider, authn *auth.Authenticator, auditRepo repository.AuditLogRepository, redirectURL string, secure bool) *OAuthHandler {
	return &OAuthHandler{
		providers:   providers,
		authn:       authn,
		audit:       auditor{repo: auditRepo},
		redirectURL: redirectURL,
		secure:      secure,
	}
}

func (h *OAuthHandler) provider(c *gin.Context) (auth.OAuthProvider, bool) {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		notFound(c, "unknown provider")
	}
	return p, ok
}

// Begin godoc
// @Summary Start OAuth sign-in
// @Description Redirect to the provider's consent page
// @Tags auth
// @Param provider path string true "Provider" Enums(github, google)
// @Success 307 "Redirect to the provider"
// @Failure 404 {object} models.ErrorResponse "Unknown provider"
// @Router /auth/oauth/{provider} [get]
func (h *OAuthHandler) Begin(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}

	state := auth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int(oauthStateMaxAge/time.Second), "/", "", h.secure, true)
	c.Redirect(http.StatusTemporaryRedirect, p.AuthURL(state))
}

// Callback godoc
// @Summary Complete OAuth sign-in
// @Description Verify the state, exchange the code and sign in. New emails get a verified account.
// @Tags auth
// @Produce json
// @Param provider path string true "Provider" Enums(github, google)
// @Param code query string true "Authorization code"
// @Param state query string true "State"
// @Success 200 {object} models.LoginResponse "Tokens"
// @Success 302 "Redirect to the client with tokens in the fragment"
// @Failure 400 {object} models.ErrorResponse "State mismatch or missing code"
// @Failure 403 {object} models.ErrorResponse "Registration disabled"
// @Failure 404 {object} models.ErrorResponse "Unknown provider"
// @Failure 409 {object} models.ErrorResponse "Email already in use with a different provider"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}

	state, err := c.Cookie(oauthStateCookie)
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.secure, true)
	if err != nil || state == "" || state != c.Query("state") {
		badRequest(c, "invalid oauth state")
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		h.fail(c, auth.NewError(auth.ErrorCredentialsSignin))
		return
	}

	code := c.Query("code")
	if code == "" {
		badRequest(c, "missing authorization code")
		return
	}

	ctx := c.Request.Context()
	profile, err := p.Exchange(ctx, code)
	if err != nil {
		internalError(c, "exchange oauth code", err)
		return
	}

	user, err := h.authn.OAuthLogin(ctx, profile)
	if err != nil {
		h.fail(c, err)
		return
	}

	tokens, err := h.authn.Service().IssueTokens(ctx, user)
	if err != nil {
		internalError(c, "issue tokens", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionLogin, "user", user.ID.String(), "User logged in with "+p.Name(), map[string]any{"provider": p.Name()})

	if h.redirectURL == "" {
		c.JSON(http.StatusOK, models.LoginResponse{
			Success:      true,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		})
		return
	}

	fragment := url.Values{}
	fragment.Set("access_token", tokens.AccessToken)
	fragment.Set("refresh_token", tokens.RefreshToken)
	c.Redirect(http.StatusFound, h.redirectURL+"#"+fragment.Encode())
}

// fail sends typed failures back to the client app as ?error=<type> when a
// redirect target is configured
func (h *OAuthHandler) fail(c *gin.Context, err error) {
	t := auth.TypeOf(err)
	if h.redirectURL == "" || t == auth.ErrorUnknown {
		respondAuthError(c, "complete oauth sign-in", err)
		return
	}
	c.Redirect(http.StatusFound, h.redirectURL+"?error="+url.QueryEscape(string(t)))
}
