package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errorStatus = map[auth.ErrorType]int{
	auth.ErrorCredentialsSignin:     http.StatusUnauthorized,
	auth.ErrorOAuthAccountNotLinked: http.StatusConflict,
	auth.ErrorRegistrationDisabled:  http.StatusForbidden,
	auth.ErrorEmailNotVerified:      http.StatusForbidden,
	auth.ErrorEmailInUse:            http.StatusConflict,
	auth.ErrorInvalidCode:           http.StatusUnauthorized,
	auth.ErrorCodeExpired:           http.StatusUnauthorized,
	auth.ErrorChallengeActive:       http.StatusTooManyRequests,
	auth.ErrorTwoFactorDisabled:     http.StatusBadRequest,
	auth.ErrorPasswordCompromised:   http.StatusBadRequest,
	auth.ErrorInvalidToken:          http.StatusBadRequest,
	auth.ErrorTokenExpired:          http.StatusBadRequest,
	auth.ErrorRateLimited:           http.StatusTooManyRequests,
}

// StatusFor returns the HTTP status used for an auth error type
func StatusFor(t auth.ErrorType) int {
	if status, ok := errorStatus[t]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondAuthError writes a typed auth failure. Untyped errors are logged and
// answered with the generic message.
func respondAuthError(c *gin.Context, action string, err error) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		internalError(c, action, err)
		return
	}
	if authErr.Type == auth.ErrorUnknown {
		internalError(c, action, err)
		return
	}
	if authErr.WaitTime > 0 {
		c.Header("Retry-After", strconv.Itoa(authErr.WaitTime))
	}
	c.JSON(StatusFor(authErr.Type), models.ErrorResponse{
		Error:           authErr.Message(),
		ErrorType:       string(authErr.Type),
		WaitTimeSeconds: authErr.WaitTime,
	})
}

func internalError(c *gin.Context, action string, err error) {
	log.Printf("Failed to %s: %v", action, err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:     auth.GenericMessage,
		ErrorType: string(auth.ErrorUnknown),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: message})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{Error: message})
}

func forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, models.ErrorResponse{Error: message})
}

// bindingError reports the first failed rule of a request body
func bindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		badRequest(c, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), validation.Message(fe.Tag(), fe.Param())))
		return
	}
	badRequest(c, "invalid request body")
}

// pagination reads limit and offset query parameters
func pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(c, "invalid limit")
			return 0, 0, false
		}
		limit = min(v, maxPageSize)
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "invalid offset")
			return 0, 0, false
		}
		offset = v
	}
	return limit, offset, true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		badRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// ActionLimits enforces the per-action budgets of individual endpoints
type ActionLimits struct {
	set *ratelimit.Set
	now func() time.Time
}

// NewActionLimits wraps a limiter set. A nil set allows everything.
func NewActionLimits(set *ratelimit.Set) *ActionLimits {
	return &ActionLimits{set: set, now: time.Now}
}

// allow consumes one unit of action for the client IP and parts. A rejected
// request has already been answered when it returns false.
func (l *ActionLimits) allow(c *gin.Context, action string, parts ...string) bool {
	if l == nil {
		return true
	}
	key := ratelimit.Key(action, append([]string{c.ClientIP()}, parts...)...)
	decision, err := l.set.For(action).Limit(c.Request.Context(), key)
	if err != nil || decision.Success {
		return true
	}
	respondAuthError(c, action, auth.RateLimitedError(decision.WaitTime(l.now())))
	return false
}

// auditor writes audit entries for handler actions. Failures never fail the request.
type auditor struct {
	repo repository.AuditLogRepository
}

func (a auditor) record(c *gin.Context, userID *uuid.UUID, action models.AuditAction, entityType, entityID, description string, metadata map[string]any) {
	if a.repo == nil {
		return
	}

	meta := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}

	err := a.repo.Create(c.Request.Context(), &models.CreateAuditLogRequest{
		UserID:      userID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		Metadata:    meta,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		log.Printf("Failed to create audit log: %v", err)
	}
}
