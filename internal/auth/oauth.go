package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"log"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
)

const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"

	githubAPIURL      = "https://api.github.com"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// ErrNoVerifiedEmail is returned when the provider has no verified address for the account
var ErrNoVerifiedEmail = errors.New("provider returned no verified email")

// OAuthProfile is the identity a provider vouches for
type OAuthProfile struct {
	Provider  string
	AccountID string
	Email     string
	Name      string
	Image     string
}

// OAuthProvider runs the authorization code flow for one identity provider
type OAuthProvider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthProfile, error)
}

// NewState returns a fresh unguessable state value for an authorization request
func NewState() string {
	return oauth2.GenerateVerifier()
}

// CallbackURL is where a provider sends the browser back to
func CallbackURL(baseURL, provider string) string {
	return fmt.Sprintf("%s/api/v1/auth/oauth/%s/callback", strings.TrimRight(baseURL, "/"), provider)
}

// NewOAuthProviders returns every provider with credentials configured, keyed by name
func NewOAuthProviders(cfg config.OAuthConfig, baseURL string) map[string]OAuthProvider {
	providers := make(map[string]OAuthProvider)
	if cfg.GitHub.Enabled() {
		providers[ProviderGitHub] = NewGitHubProvider(cfg.GitHub, CallbackURL(baseURL, ProviderGitHub))
	}
	if cfg.Google.Enabled() {
		providers[ProviderGoogle] = NewGoogleProvider(cfg.Google, CallbackURL(baseURL, ProviderGoogle))
	}
	return providers
}

// GitHubProvider signs users in with GitHub
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a GitHub provider
func NewGitHubProvider(creds config.OAuthProviderConfig, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: githubAPIURL,
	}
}

func (p *GitHubProvider) Name() string { return ProviderGitHub }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades code for the GitHub profile of the user
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange github code: %w", err)
	}
	return p.profile(ctx, p.config.Client(ctx, token))
}

func (p *GitHubProvider) profile(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	var user githubUser
	if err := getJSON(ctx, client, p.apiURL+"/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("github returned an invalid user")
	}

	// The public email may be hidden; fall back to the primary verified address
	address := user.Email
	if address == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, p.apiURL+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				address = e.Email
				break
			}
		}
	}
	if address == "" {
		return nil, ErrNoVerifiedEmail
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &OAuthProfile{
		Provider:  ProviderGitHub,
		AccountID: strconv.FormatInt(user.ID, 10),
		Email:     NormalizeEmail(address),
		Name:      name,
		Image:     user.AvatarURL,
	}, nil
}

// GoogleProvider signs users in with Google
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a Google provider
func NewGoogleProvider(creds config.OAuthProviderConfig, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades code for the Google profile of the user
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange google code: %w", err)
	}
	return p.profile(ctx, p.config.Client(ctx, token))
}

func (p *GoogleProvider) profile(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	var user googleUser
	if err := getJSON(ctx, client, p.userInfoURL, &user); err != nil {
		return nil, err
	}
	if user.Sub == "" {
		return nil, errors.New("google returned an invalid user")
	}
	if user.Email == "" || !user.EmailVerified {
		return nil, ErrNoVerifiedEmail
	}
	return &OAuthProfile{
		Provider:  ProviderGoogle,
		AccountID: user.Sub,
		Email:     NormalizeEmail(user.Email),
		Name:      user.Name,
		Image:     user.Picture,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// OAuthLogin signs in the user linked to profile, creating a verified account
// on first sign-in. An existing credentials account with the same email is
// never linked implicitly.
func (a *Authenticator) OAuthLogin(ctx context.Context, profile *OAuthProfile) (*models.User, error) {
	account, err := a.accounts.GetByProvider(ctx, profile.Provider, profile.AccountID)
	switch {
	case err == nil:
		user, err := a.users.GetByID(ctx, account.UserID)
		if err != nil {
			return nil, err
		}
		if err := a.users.UpdateLastLogin(ctx, user.ID, a.now()); err != nil {
			log.Printf("Failed to update last login: %v", err)
		}
		return user, nil
	case !errors.Is(err, repository.ErrAccountNotFound):
		return nil, err
	}

	if _, err := a.users.GetByEmail(ctx, profile.Email); err == nil {
		return nil, NewError(ErrorOAuthAccountNotLinked)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	role, err := a.roleForNewUser(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	user := &models.User{
		Name:            profile.Name,
		Email:           profile.Email,
		EmailVerifiedAt: &now,
		Role:            role,
		LastLoginAt:     &now,
	}
	if profile.Image != "" {
		user.Image = &profile.Image
	}
	if user.Name == "" {
		user.Name, _, _ = strings.Cut(profile.Email, "@")
	}

	err = a.users.Transaction(ctx, func(ctx context.Context) error {
		if err := a.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return NewError(ErrorOAuthAccountNotLinked)
			}
			return err
		}
		return a.accounts.Create(ctx, &models.Account{
			UserID:            user.ID,
			Provider:          profile.Provider,
			ProviderAccountID: profile.AccountID,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
