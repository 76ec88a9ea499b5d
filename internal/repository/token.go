package repository

import (
	"context"
	"inkwell/internal/models"
	"time"

	"github.com/google/uuid"
)

const (
	// VerificationTokenLength is the number of random bytes in a verification token
	VerificationTokenLength = 32
	// ResetTokenLength is the number of random bytes in a reset token
	ResetTokenLength = 32
)

// EmailVerificationRepository stores pending email confirmations
type EmailVerificationRepository interface {
	// Create replaces any pending verification of the user with a fresh token
	Create(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (*models.EmailVerification, error)
	// GetByToken returns ErrTokenInvalid for unknown tokens and ErrTokenExpired for stale ones
	GetByToken(ctx context.Context, token string) (*models.EmailVerification, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordResetRepository stores password reset tokens
type PasswordResetRepository interface {
	Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*models.PasswordReset, error)
	GetByToken(ctx context.Context, token string) (*models.PasswordReset, error)
	MarkAsUsed(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenRepository defines the interface for refresh token operations
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TwoFactorRepository stores the single live sign-in challenge of each user
type TwoFactorRepository interface {
	// Replace stores challenge, dropping any previous challenge of the same user
	Replace(ctx context.Context, challenge *models.TwoFactorChallenge) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.TwoFactorChallenge, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
