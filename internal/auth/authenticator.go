package auth

import (
	"context"
	"errors"
	"fmt"
	"inkwell/internal/config"
	"inkwell/internal/email"
	"inkwell/internal/models"
	"inkwell/internal/pwned"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"log"
	"strings"
	"time"
)

// Outcome tells the caller which branch of the sign-in flow was taken
type Outcome int

const (
	// Authenticated means tokens may be issued for User
	Authenticated Outcome = iota
	// TwoFactorRequired means a code was emailed and is valid until ExpiresAt
	TwoFactorRequired
	// VerificationSent means the email address must be confirmed first
	VerificationSent
)

// LoginInput carries the sign-in form. Code is empty on the first step.
type LoginInput struct {
	Email    string
	Password string
	Code     string
}

// LoginResult is the successful outcome of Login
type LoginResult struct {
	Outcome   Outcome
	User      *models.User
	ExpiresAt time.Time
}

// RegisterInput carries the registration form
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// SettingsInput is a partial update of the caller's account. Nil fields are left unchanged.
type SettingsInput struct {
	Name               *string
	Email              *string
	Password           *string
	NewPassword        *string
	IsTwoFactorEnabled *bool
}

// SettingsResult reports the updated user and whether a new address awaits confirmation
type SettingsResult struct {
	User             *models.User
	VerificationSent bool
}

// Authenticator implements the account flows on top of the repositories
type Authenticator struct {
	users         repository.UserRepository
	accounts      repository.AccountRepository
	verifications repository.EmailVerificationRepository
	resets        repository.PasswordResetRepository
	twoFactor     repository.TwoFactorRepository
	service       *Service
	mailer        email.Sender
	checker       pwned.Checker
	config        config.AuthConfig
	now           func() time.Time
}

// NewAuthenticator creates an authenticator. A nil checker disables breach checks.
func NewAuthenticator(
	cfg config.AuthConfig,
	users repository.UserRepository,
	accounts repository.AccountRepository,
	verifications repository.EmailVerificationRepository,
	resets repository.PasswordResetRepository,
	twoFactor repository.TwoFactorRepository,
	service *Service,
	mailer email.Sender,
	checker pwned.Checker,
) *Authenticator {
	return &Authenticator{
		users:         users,
		accounts:      accounts,
		verifications: verifications,
		resets:        resets,
		twoFactor:     twoFactor,
		service:       service,
		mailer:        mailer,
		checker:       checker,
		config:        cfg,
		now:           time.Now,
	}
}

// SetClock replaces the time source
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
	a.service.now = now
}

// Service returns the token service used by a
func (a *Authenticator) Service() *Service {
	return a.service
}

// Login runs the credentials sign-in flow
func (a *Authenticator) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := a.checkCredentials(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	if !user.IsEmailVerified() {
		if err := a.sendVerification(ctx, user, user.Email); err != nil {
			return nil, err
		}
		return &LoginResult{Outcome: VerificationSent, User: user}, nil
	}

	if user.IsTwoFactorEnabled {
		if in.Code == "" {
			expiresAt, err := a.currentOrNewChallenge(ctx, user)
			if err != nil {
				return nil, err
			}
			return &LoginResult{Outcome: TwoFactorRequired, User: user, ExpiresAt: expiresAt}, nil
		}
		if err := a.consumeChallenge(ctx, user, in.Code); err != nil {
			return nil, err
		}
	}

	if err := a.users.UpdateLastLogin(ctx, user.ID, a.now()); err != nil {
		log.Printf("Failed to update last login: %v", err)
	}
	return &LoginResult{Outcome: Authenticated, User: user}, nil
}

// ResendTwoFactor issues a new sign-in code once the current one has expired.
// While a code is still valid it fails with ChallengeActive and the seconds left.
func (a *Authenticator) ResendTwoFactor(ctx context.Context, emailAddr, password string) (time.Time, error) {
	user, err := a.checkCredentials(ctx, emailAddr, password)
	if err != nil {
		return time.Time{}, err
	}
	if !user.IsTwoFactorEnabled {
		return time.Time{}, NewError(ErrorTwoFactorDisabled)
	}

	now := a.now()
	challenge, err := a.twoFactor.GetByUserID(ctx, user.ID)
	switch {
	case err == nil && !challenge.IsExpired(now):
		return time.Time{}, &Error{
			Type:     ErrorChallengeActive,
			WaitTime: ratelimit.WaitTimeSeconds(challenge.ExpiresAt, now),
		}
	case err != nil && !errors.Is(err, repository.ErrChallengeNotFound):
		return time.Time{}, err
	}

	return a.issueChallenge(ctx, user)
}

func (a *Authenticator) checkCredentials(ctx context.Context, emailAddr, password string) (*models.User, error) {
	user, err := a.users.GetByEmail(ctx, NormalizeEmail(emailAddr))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, NewError(ErrorCredentialsSignin)
	}
	if err != nil {
		return nil, err
	}
	// OAuth-only accounts have no password to compare against
	if !user.HasPassword() {
		return nil, NewError(ErrorCredentialsSignin)
	}
	if err := a.service.ComparePasswords(*user.Password, password); err != nil {
		return nil, NewError(ErrorCredentialsSignin)
	}
	return user, nil
}

func (a *Authenticator) currentOrNewChallenge(ctx context.Context, user *models.User) (time.Time, error) {
	challenge, err := a.twoFactor.GetByUserID(ctx, user.ID)
	if err == nil && !challenge.IsExpired(a.now()) {
		return challenge.ExpiresAt, nil
	}
	if err != nil && !errors.Is(err, repository.ErrChallengeNotFound) {
		return time.Time{}, err
	}
	return a.issueChallenge(ctx, user)
}

func (a *Authenticator) issueChallenge(ctx context.Context, user *models.User) (time.Time, error) {
	code, err := GenerateCode()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to generate code: %w", err)
	}

	challenge := &models.TwoFactorChallenge{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: a.now().Add(a.config.TwoFactorTTL),
	}
	if err := a.twoFactor.Replace(ctx, challenge); err != nil {
		return time.Time{}, fmt.Errorf("failed to store challenge: %w", err)
	}
	if err := a.mailer.SendTwoFactorCode(user.Email, user.Name, code, challenge.ExpiresAt); err != nil {
		return time.Time{}, fmt.Errorf("failed to send two-factor code: %w", err)
	}
	return challenge.ExpiresAt, nil
}

func (a *Authenticator) consumeChallenge(ctx context.Context, user *models.User, code string) error {
	challenge, err := a.twoFactor.GetByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return NewError(ErrorInvalidCode)
	}
	if err != nil {
		return err
	}
	if !CodesEqual(challenge.Code, code) {
		return NewError(ErrorInvalidCode)
	}
	if challenge.IsExpired(a.now()) {
		return NewError(ErrorCodeExpired)
	}
	return a.twoFactor.DeleteByUserID(ctx, user.ID)
}

func (a *Authenticator) sendVerification(ctx context.Context, user *models.User, address string) error {
	verification, err := a.verifications.Create(ctx, user.ID, address, a.config.VerificationTTL)
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	if err := a.mailer.SendVerificationEmail(address, user.Name, verification.Token); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// roleForNewUser gives the very first account SUPERADMIN and refuses new
// accounts when registration is closed
func (a *Authenticator) roleForNewUser(ctx context.Context) (models.Role, error) {
	count, err := a.users.Count(ctx)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return models.RoleSuperAdmin, nil
	}
	if !a.config.RegistrationOpen {
		return "", NewError(ErrorRegistrationDisabled)
	}
	return models.RoleUser, nil
}

// Register creates a credentials account and emails a verification link
func (a *Authenticator) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role, err := a.roleForNewUser(ctx)
	if err != nil {
		return nil, err
	}

	address := NormalizeEmail(in.Email)
	if _, err := a.users.GetByEmail(ctx, address); err == nil {
		return nil, NewError(ErrorEmailInUse)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if err := a.CheckPassword(ctx, in.Password); err != nil {
		return nil, err
	}

	hashed, err := a.service.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    address,
		Password: &hashed,
		Role:     role,
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, NewError(ErrorEmailInUse)
		}
		return nil, err
	}

	if err := a.sendVerification(ctx, user, user.Email); err != nil {
		// The account exists; signing in sends a fresh link
		log.Printf("Failed to send verification after registration: %v", err)
	}
	return user, nil
}

// VerifyEmail confirms the address carried by token and returns the updated user
func (a *Authenticator) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	verification, err := a.verifications.GetByToken(ctx, token)
	if err != nil {
		return nil, tokenError(err)
	}

	user, err := a.users.GetByID(ctx, verification.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, NewError(ErrorInvalidToken)
	}
	if err != nil {
		return nil, err
	}

	if err := a.users.VerifyEmail(ctx, user.ID, verification.Email, a.now()); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, NewError(ErrorEmailInUse)
		}
		return nil, err
	}
	if err := a.verifications.Delete(ctx, verification.ID); err != nil {
		log.Printf("Failed to delete used verification: %v", err)
	}

	return a.users.GetByID(ctx, user.ID)
}

// ResendVerification emails a new link to an unverified account. Unknown
// and already verified addresses succeed silently.
func (a *Authenticator) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := a.users.GetByEmail(ctx, NormalizeEmail(emailAddr))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsEmailVerified() {
		return nil
	}
	return a.sendVerification(ctx, user, user.Email)
}

// RequestPasswordReset emails a reset link to credentials accounts. Unknown
// addresses succeed silently.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := a.users.GetByEmail(ctx, NormalizeEmail(emailAddr))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return nil
	}

	reset, err := a.resets.Create(ctx, user.ID, a.config.ResetTTL)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	if err := a.mailer.SendPasswordResetEmail(user.Email, user.Name, reset.Token); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// CompletePasswordReset sets a new password and signs the user out everywhere
func (a *Authenticator) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	reset, err := a.resets.GetByToken(ctx, token)
	if err != nil {
		return tokenError(err)
	}

	if err := a.CheckPassword(ctx, newPassword); err != nil {
		return err
	}
	hashed, err := a.service.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return a.users.Transaction(ctx, func(ctx context.Context) error {
		if err := a.users.UpdatePassword(ctx, reset.UserID, hashed); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return NewError(ErrorInvalidToken)
			}
			return err
		}
		if err := a.resets.MarkAsUsed(ctx, reset.ID); err != nil {
			return tokenError(err)
		}
		return a.service.DeleteAllRefreshTokens(ctx, reset.UserID)
	})
}

// UpdateSettings applies a partial update of user's own account. Email,
// password and two-factor changes only apply to credentials accounts; a new
// email is stored once its verification link is followed. Every check runs
// before anything is written, and the writes share one transaction.
func (a *Authenticator) UpdateSettings(ctx context.Context, user *models.User, in SettingsInput) (*SettingsResult, error) {
	updated := *user
	if in.Name != nil {
		updated.Name = strings.TrimSpace(*in.Name)
	}

	var hashed, newEmail string
	if user.HasPassword() {
		if in.IsTwoFactorEnabled != nil {
			updated.IsTwoFactorEnabled = *in.IsTwoFactorEnabled
		}

		if in.Email != nil {
			address := NormalizeEmail(*in.Email)
			if address != user.Email {
				if existing, err := a.users.GetByEmail(ctx, address); err == nil && existing.ID != user.ID {
					return nil, NewError(ErrorEmailInUse)
				} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
					return nil, err
				}
				newEmail = address
			}
		}

		if in.NewPassword != nil {
			if in.Password == nil {
				return nil, NewError(ErrorCredentialsSignin)
			}
			if err := a.service.ComparePasswords(*user.Password, *in.Password); err != nil {
				return nil, NewError(ErrorCredentialsSignin)
			}
			if err := a.CheckPassword(ctx, *in.NewPassword); err != nil {
				return nil, err
			}
			var err error
			if hashed, err = a.service.HashPassword(*in.NewPassword); err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
		}
	}

	err := a.users.Transaction(ctx, func(ctx context.Context) error {
		if err := a.users.Update(ctx, &updated); err != nil {
			return err
		}
		if hashed != "" {
			if err := a.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
				return err
			}
			updated.Password = &hashed
		}
		// mail last; a delivery failure must roll the writes back
		if newEmail != "" {
			return a.sendVerification(ctx, user, newEmail)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SettingsResult{User: &updated, VerificationSent: newEmail != ""}, nil
}

// CheckPassword rejects passwords found in the breach corpus. Lookup
// failures are logged and the password is accepted.
func (a *Authenticator) CheckPassword(ctx context.Context, password string) error {
	if a.checker == nil {
		return nil
	}
	result := a.checker.Check(ctx, password)
	if result.Err != nil {
		log.Printf("Breach check unavailable, accepting password: %v", result.Err)
		return nil
	}
	if result.IsCompromised {
		return NewError(ErrorPasswordCompromised)
	}
	return nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, repository.ErrTokenExpired):
		return NewError(ErrorTokenExpired)
	case errors.Is(err, repository.ErrTokenInvalid), errors.Is(err, repository.ErrTokenUsed):
		return NewError(ErrorInvalidToken)
	default:
		return err
	}
}
