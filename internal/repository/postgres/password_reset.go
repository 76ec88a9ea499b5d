package postgres

import (
	"context"
	"database/sql"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"time"

	"github.com/google/uuid"
)

type passwordResetRepository struct {
	repository.BaseRepository
}

// NewPasswordResetRepository creates a new PostgreSQL password reset repository
func NewPasswordResetRepository(db *sql.DB) repository.PasswordResetRepository {
	return &passwordResetRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *passwordResetRepository) Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*models.PasswordReset, error) {
	// First verify the user exists
	var exists bool
	err := r.Conn(ctx).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)", userID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrUserNotFound
	}

	token, err := repository.GenerateToken(repository.ResetTokenLength)
	if err != nil {
		return nil, err
	}

	reset := &models.PasswordReset{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	}

	query := `
		INSERT INTO password_resets (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err = r.Conn(ctx).QueryRowContext(ctx, query, reset.ID, reset.UserID, reset.Token, reset.ExpiresAt).
		Scan(&reset.CreatedAt)
	if err != nil {
		return nil, err
	}

	return reset, nil
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	reset := &models.PasswordReset{}
	query := `
		SELECT id, user_id, token, expires_at, used_at, created_at
		FROM password_resets
		WHERE token = $1`

	err := r.Conn(ctx).QueryRowContext(ctx, query, token).Scan(
		&reset.ID,
		&reset.UserID,
		&reset.Token,
		&reset.ExpiresAt,
		&reset.UsedAt,
		&reset.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, repository.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if reset.UsedAt != nil {
		return nil, repository.ErrTokenUsed
	}

	if time.Now().After(reset.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}

	return reset, nil
}

func (r *passwordResetRepository) MarkAsUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE password_resets
		SET used_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND used_at IS NULL`

	result, err := r.Conn(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrTokenInvalid
	}

	return nil
}

func (r *passwordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.Conn(ctx).ExecContext(ctx,
		`DELETE FROM password_resets WHERE expires_at < $1 OR used_at IS NOT NULL`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
