package middleware

import (
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware
const (
	ContextUser   = "user"
	ContextClaims = "claims"
)

type AuthMiddleware struct {
	authService *auth.Service
	userRepo    repository.UserRepository
}

func NewAuthMiddleware(authService *auth.Service, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// authenticate resolves the bearer token to a live user
func (m *AuthMiddleware) authenticate(c *gin.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := m.authService.ValidateToken(token)
	if err != nil {
		return nil, nil, err
	}

	// The token may outlive the account or a role change
	user, err := m.userRepo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func unauthorized(c *gin.Context, message string, errorType auth.ErrorType) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: message, ErrorType: string(errorType)})
}

// AuthRequired rejects requests without a valid access token
func (m *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			unauthorized(c, "no authorization header", "")
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "invalid authorization header", "")
			return
		}

		user, claims, err := m.authenticate(c, token)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			unauthorized(c, "token expired", auth.ErrorTokenExpired)
			return
		case errors.Is(err, auth.ErrInvalidToken):
			unauthorized(c, "invalid token", auth.ErrorInvalidToken)
			return
		case errors.Is(err, repository.ErrUserNotFound):
			unauthorized(c, "user not found", auth.ErrorInvalidToken)
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: auth.GenericMessage})
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and lets every request through
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, claims, err := m.authenticate(c, token); err == nil {
				c.Set(ContextUser, user)
				c.Set(ContextClaims, claims)
			}
		}
		c.Next()
	}
}

// RoleRequired admits authenticated users holding one of roles
func (m *AuthMiddleware) RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.GetUserFromContext(c)
		if user == nil {
			unauthorized(c, "authentication required", "")
			return
		}
		if !slices.Contains(roles, user.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// AdminRequired admits ADMIN and SUPERADMIN users
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return m.RoleRequired(models.RoleAdmin, models.RoleSuperAdmin)
}
