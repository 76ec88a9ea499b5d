package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Repository represents the base repository interface
type Repository interface {
	// Transaction executes operations within a database transaction
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories bundles every repository of one storage backend
type Repositories struct {
	Users         UserRepository
	Accounts      AccountRepository
	Verifications EmailVerificationRepository
	Resets        PasswordResetRepository
	RefreshTokens RefreshTokenRepository
	TwoFactor     TwoFactorRepository
	Posts         PostRepository
	Comments      CommentRepository
	AuditLogs     AuditLogRepository
}

type txKey struct{}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sql.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sql.DB) BaseRepository {
	return BaseRepository{db: db}
}

// DB returns the database connection
func (r *BaseRepository) DB() *sql.DB {
	return r.db
}

// Conn returns the transaction bound to ctx, or the pool when there is none
func (r *BaseRepository) Conn(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// Transaction runs fn with a transaction bound to its context. Repositories
// sharing the same *sql.DB pick it up through Conn.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// GenerateToken returns n random bytes encoded as hex
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
