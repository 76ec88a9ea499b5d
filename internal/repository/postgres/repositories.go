package postgres

import (
	"database/sql"
	"inkwell/internal/repository"
)

// NewRepositories returns every repository backed by db. They share
// transactions started through any of them.
func NewRepositories(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Users:         NewUserRepository(db),
		Accounts:      NewAccountRepository(db),
		Verifications: NewEmailVerificationRepository(db),
		Resets:        NewPasswordResetRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
		TwoFactor:     NewTwoFactorRepository(db),
		Posts:         NewPostRepository(db),
		Comments:      NewCommentRepository(db),
		AuditLogs:     NewAuditLogRepository(db),
	}
}
