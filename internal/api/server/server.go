// Package server provides the HTTP server implementation
package server

// @title           Inkwell API
// @version         1.0
// @description     Inkwell blog platform API with account security and moderation.
// @x-skip-model-definitions true
//
// @description.markdown
// All API endpoints are subject to a per-IP rate limit. Sign-in, registration,
// password reset, verification resend, two-factor resend and commenting also
// have their own budgets.
//
// When a rate limit is exceeded:
// * Status code 429 (Too Many Requests) is returned
// * The body carries error_type "RateLimited" and wait_time_seconds
// * Headers:
//   - X-RateLimit-Limit: Maximum requests allowed
//   - X-RateLimit-Reset: Unix timestamp when the rate limit resets
//   - Retry-After: Seconds to wait before retrying
//
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication
//
// @response 429 {object} models.ErrorResponse "Rate limit exceeded"

import (
	"context"
	"errors"
	"fmt"
	"inkwell/internal/config"
	"log"
	"net/http"
	"strconv"
	"time"
)

const defaultShutdownTimeout = 5 * time.Second

// Server represents the HTTP server
type Server struct {
	cfg config.APIConfig
	srv *http.Server
}

// New creates a new server instance
func New(cfg config.APIConfig, handler http.Handler) (*Server, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port number: %w", err)
	}

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then gives outstanding requests the
// shutdown timeout to complete
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
