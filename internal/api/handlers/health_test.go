package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"inkwell/internal/api/handlers"
	"inkwell/internal/models"
	"inkwell/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func redisCheck(t *testing.T, down bool) handlers.HealthCheck {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	if down {
		mr.Close()
	}
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(t *testing.T) map[string]handlers.HealthCheck
		wantStatus int
		wantErr    bool
		errMsg     string
	}{
		{
			name: "Success_NoDependencies",
			setupFunc: func(t *testing.T) map[string]handlers.HealthCheck {
				return nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Success_Redis",
			setupFunc: func(t *testing.T) map[string]handlers.HealthCheck {
				return map[string]handlers.HealthCheck{"redis": redisCheck(t, false)}
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Error_RedisDown",
			setupFunc: func(t *testing.T) map[string]handlers.HealthCheck {
				return map[string]handlers.HealthCheck{"redis": redisCheck(t, true)}
			},
			wantStatus: http.StatusServiceUnavailable,
			wantErr:    true,
			errMsg:     "redis connection failed",
		},
		{
			name: "Error_DatabaseDown",
			setupFunc: func(t *testing.T) map[string]handlers.HealthCheck {
				return map[string]handlers.HealthCheck{
					"database": func(ctx context.Context) error { return errors.New("connection refused") },
					"redis":    redisCheck(t, false),
				}
			},
			wantStatus: http.StatusServiceUnavailable,
			wantErr:    true,
			errMsg:     "database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewHealthHandler(tt.setupFunc(t))

			// Setup router
			router := gin.New()
			router.GET("/health", handler.Health)

			// Make request
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/health", nil)
			router.ServeHTTP(w, req)

			// Check status code
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantErr {
				var errResp models.ErrorResponse
				err := json.Unmarshal(w.Body.Bytes(), &errResp)
				require.NoError(t, err)
				require.Equal(t, tt.errMsg, errResp.Error)
			} else {
				var resp models.HealthResponse
				err := json.Unmarshal(w.Body.Bytes(), &resp)
				require.NoError(t, err)
				require.Equal(t, "healthy", resp.Status)
			}
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, path, nil)
			tc.Router().ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
		})
	}
}
