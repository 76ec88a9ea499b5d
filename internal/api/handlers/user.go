package handlers

import (
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserHandler handles the caller's own account
type UserHandler struct {
	authn    *auth.Authenticator
	userRepo repository.UserRepository
	audit    auditor
}

// NewUserHandler creates a new user handler
func NewUserHandler(authn *auth.Authenticator, userRepo repository.UserRepository, auditRepo repository.AuditLogRepository) *UserHandler {
	return &UserHandler{
		authn:    authn,
		userRepo: userRepo,
		audit:    auditor{repo: auditRepo},
	}
}

// GetMe godoc
// @Summary Get current user
// @Description Get the authenticated user's account
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, auth.GetUserFromContext(c))
}

// UpdateSettings godoc
// @Summary Update account settings
// @Description Change name, email, password or two-factor setting. A new email
// @Description takes effect once its confirmation link is followed. Email, password
// @Description and two-factor changes only apply to accounts with a password.
// @Tags users
// @Accept json
// @Produce json
// @Param request body models.UpdateSettingsRequest true "Settings to change"
// @Success 200 {object} models.SettingsResponse
// @Failure 400 {object} models.ErrorResponse "Invalid request or compromised password"
// @Failure 401 {object} models.ErrorResponse "Unauthorized or wrong current password"
// @Failure 409 {object} models.ErrorResponse "Email already in use"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /users/me/settings [put]
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	user := auth.GetUserFromContext(c)
	result, err := h.authn.UpdateSettings(c.Request.Context(), user, auth.SettingsInput{
		Name:               req.Name,
		Email:              req.Email,
		Password:           req.Password,
		NewPassword:        req.NewPassword,
		IsTwoFactorEnabled: req.IsTwoFactorEnabled,
	})
	if err != nil {
		respondAuthError(c, "update settings", err)
		return
	}

	action := models.AuditActionUpdate
	if req.NewPassword != nil && user.HasPassword() {
		action = models.AuditActionPassword
	}
	h.audit.record(c, &user.ID, action, "user", user.ID.String(), "User updated settings", map[string]any{
		"verification_sent": result.VerificationSent,
	})

	message := "Settings updated!"
	if result.VerificationSent {
		message = "Confirmation email sent!"
	}
	c.JSON(http.StatusOK, models.SettingsResponse{
		User:             result.User,
		VerificationSent: result.VerificationSent,
		Message:          message,
	})
}

// DeleteMe godoc
// @Summary Delete own account
// @Description Delete the authenticated user's account and sign out every session
// @Tags users
// @Success 204 "No Content"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /users/me [delete]
func (h *UserHandler) DeleteMe(c *gin.Context) {
	user := auth.GetUserFromContext(c)

	if err := h.userRepo.Delete(c.Request.Context(), user.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			notFound(c, "user not found")
			return
		}
		internalError(c, "delete user", err)
		return
	}
	if err := h.authn.Service().DeleteAllRefreshTokens(c.Request.Context(), user.ID); err != nil {
		internalError(c, "revoke sessions", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionDelete, "user", user.ID.String(), "User deleted own account", nil)
	c.Status(http.StatusNoContent)
}
