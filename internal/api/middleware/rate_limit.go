package middleware

import (
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter applies the global per-IP budget
type RateLimiter struct {
	limiter ratelimit.Limiter
	limit   int
	now     func() time.Time
}

// NewRateLimiter creates the global rate limit middleware. limit is only used for headers.
func NewRateLimiter(limiter ratelimit.Limiter, limit int) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		now:     time.Now,
	}
}

func skipRateLimit(path string) bool {
	return strings.HasPrefix(path, "/swagger/") || path == "/health"
}

// Middleware returns a Gin middleware function that implements rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipRateLimit(c.Request.URL.Path) {
			c.Next()
			return
		}

		decision, err := rl.limiter.Limit(c.Request.Context(), ratelimit.Key(ratelimit.ActionGlobal, c.ClientIP()))
		if err != nil {
			// Limiters are wrapped fail-open; a raw error here means no budget applies
			c.Next()
			return
		}

		limit := decision.Limit
		if limit == 0 {
			limit = rl.limit
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if !decision.Success {
			wait := decision.WaitTime(rl.now())
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:           auth.ErrorRateLimited.Message(),
				ErrorType:       string(auth.ErrorRateLimited),
				WaitTimeSeconds: wait,
			})
			return
		}

		c.Next()
	}
}
