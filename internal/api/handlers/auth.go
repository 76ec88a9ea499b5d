package handlers

import (
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles sign-in, registration and account recovery
type AuthHandler struct {
	authn       *auth.Authenticator
	authService *auth.Service
	userRepo    repository.UserRepository
	audit       auditor
	limits      *ActionLimits
}

// NewAuthHandler creates a new authentication handler with the given dependencies
func NewAuthHandler(
	authn *auth.Authenticator,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	limits *ActionLimits,
) *AuthHandler {
	return &AuthHandler{
		authn:       authn,
		authService: authn.Service(),
		userRepo:    userRepo,
		audit:       auditor{repo: auditRepo},
		limits:      limits,
	}
}

// respondTokens issues a session for user and writes the login success body
func (h *AuthHandler) respondTokens(c *gin.Context, user *models.User) {
	tokens, err := h.authService.IssueTokens(c.Request.Context(), user)
	if err != nil {
		internalError(c, "issue tokens", err)
		return
	}
	c.JSON(http.StatusOK, models.LoginResponse{
		Success:      true,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Login godoc
// @Summary User login
// @Description Sign in with email and password. Accounts with two-factor enabled
// @Description receive an emailed code on the first call and send it back as `code`.
// @Description Unverified accounts get a new confirmation email and a 202.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse "Tokens, or a two-factor challenge with its expiry in epoch milliseconds"
// @Success 202 {object} models.SuccessResponse "Confirmation email sent"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials or code"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if !h.limits.allow(c, ratelimit.ActionLogin, email) {
		return
	}

	result, err := h.authn.Login(c.Request.Context(), auth.LoginInput{
		Email:    email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		respondAuthError(c, "log in", err)
		return
	}

	switch result.Outcome {
	case auth.VerificationSent:
		c.JSON(http.StatusAccepted, models.SuccessResponse{Message: "Confirmation email sent!"})
	case auth.TwoFactorRequired:
		c.JSON(http.StatusOK, models.LoginResponse{
			TwoFactor: true,
			ExpiresAt: result.ExpiresAt.UnixMilli(),
		})
	default:
		h.audit.record(c, &result.User.ID, models.AuditActionLogin, "user", result.User.ID.String(), "User logged in", nil)
		h.respondTokens(c, result.User)
	}
}

// ResendTwoFactor godoc
// @Summary Resend two-factor code
// @Description Email a fresh sign-in code once the current one has expired
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResendTwoFactorRequest true "Credentials"
// @Success 200 {object} models.LoginResponse "New challenge expiry"
// @Failure 400 {object} models.ErrorResponse "Invalid request format or two-factor disabled"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 429 {object} models.ErrorResponse "A code is still active or rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/two-factor/resend [post]
func (h *AuthHandler) ResendTwoFactor(c *gin.Context) {
	var req models.ResendTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if !h.limits.allow(c, ratelimit.ActionTwoFactor, email) {
		return
	}

	expiresAt, err := h.authn.ResendTwoFactor(c.Request.Context(), email, req.Password)
	if err != nil {
		respondAuthError(c, "resend two-factor code", err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{TwoFactor: true, ExpiresAt: expiresAt.UnixMilli()})
}

// Register godoc
// @Summary Register a new account
// @Description Create a credentials account and send a confirmation email. The first account becomes SUPERADMIN.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration details"
// @Success 201 {object} models.SuccessResponse "Account created"
// @Failure 400 {object} models.ErrorResponse "Invalid request or compromised password"
// @Failure 403 {object} models.ErrorResponse "Registration disabled"
// @Failure 409 {object} models.ErrorResponse "Email already in use"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	if !h.limits.allow(c, ratelimit.ActionRegister) {
		return
	}

	user, err := h.authn.Register(c.Request.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAuthError(c, "register user", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionRegister, "user", user.ID.String(), "User registered", map[string]any{"role": user.Role})
	c.JSON(http.StatusCreated, models.SuccessResponse{Message: "Confirmation email sent!"})
}

// VerifyEmail godoc
// @Summary Verify email address
// @Description Confirm an email address with the emailed token
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} models.SuccessResponse "Email verified"
// @Failure 400 {object} models.ErrorResponse "Invalid or expired token"
// @Failure 409 {object} models.ErrorResponse "Email already in use"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.EmailVerificationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindingError(c, err)
		return
	}

	user, err := h.authn.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		respondAuthError(c, "verify email", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionUpdate, "user", user.ID.String(), "Email verified", map[string]any{"email": user.Email})
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Email verified!"})
}

// ResendVerification godoc
// @Summary Resend verification email
// @Description Send a new confirmation email. Answers the same way whether or not the address is registered.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResendVerificationRequest true "Email address"
// @Success 200 {object} models.SuccessResponse "Confirmation email sent"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req models.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if !h.limits.allow(c, ratelimit.ActionVerification, email) {
		return
	}

	if err := h.authn.ResendVerification(c.Request.Context(), email); err != nil {
		respondAuthError(c, "resend verification", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Confirmation email sent!"})
}

// RequestPasswordReset godoc
// @Summary Request password reset
// @Description Email a password reset link. Answers the same way whether or not the address is registered.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.PasswordResetRequest true "Email address"
// @Success 200 {object} models.SuccessResponse "Reset email sent"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/reset-password [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if !h.limits.allow(c, ratelimit.ActionReset, email) {
		return
	}

	if err := h.authn.RequestPasswordReset(c.Request.Context(), email); err != nil {
		respondAuthError(c, "request password reset", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Reset email sent!"})
}

// CompletePasswordReset godoc
// @Summary Complete password reset
// @Description Set a new password with a reset token. Every session of the account is signed out.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.CompleteResetRequest true "Reset token and new password"
// @Success 200 {object} models.SuccessResponse "Password updated"
// @Failure 400 {object} models.ErrorResponse "Invalid token or compromised password"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/reset-password/complete [post]
func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req models.CompleteResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	if err := h.authn.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondAuthError(c, "complete password reset", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Password updated!"})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange a refresh token for a new token pair. The old refresh token is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.TokenRefreshRequest true "Refresh token"
// @Success 200 {object} models.LoginResponse "New tokens"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid or expired refresh token"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, err := h.authService.ValidateRefreshToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrorTokenExpired.Message(), ErrorType: string(auth.ErrorTokenExpired)})
			return
		}
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrorInvalidToken.Message(), ErrorType: string(auth.ErrorInvalidToken)})
			return
		}
		internalError(c, "validate refresh token", err)
		return
	}

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrorInvalidToken.Message(), ErrorType: string(auth.ErrorInvalidToken)})
			return
		}
		internalError(c, "get user", err)
		return
	}

	if err := h.authService.DeleteRefreshToken(ctx, req.Token); err != nil {
		internalError(c, "revoke refresh token", err)
		return
	}

	h.respondTokens(c, user)
}

// Logout godoc
// @Summary Log out
// @Description Revoke a refresh token. Unknown tokens are ignored.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.TokenRefreshRequest true "Refresh token"
// @Success 200 {object} models.SuccessResponse "Logged out"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, err := h.authService.ValidateRefreshToken(ctx, req.Token)
	if err == nil {
		h.audit.record(c, &userID, models.AuditActionLogout, "user", userID.String(), "User logged out", nil)
	}

	if err := h.authService.DeleteRefreshToken(ctx, req.Token); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
		internalError(c, "revoke refresh token", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "Logged out"})
}
