package postgres

import (
	"context"
	"database/sql"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"time"

	"github.com/google/uuid"
)

type emailVerificationRepository struct {
	repository.BaseRepository
}

// NewEmailVerificationRepository creates a new PostgreSQL email verification repository
func NewEmailVerificationRepository(db *sql.DB) repository.EmailVerificationRepository {
	return &emailVerificationRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *emailVerificationRepository) Create(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (*models.EmailVerification, error) {
	token, err := repository.GenerateToken(repository.VerificationTokenLength)
	if err != nil {
		return nil, err
	}

	verification := &models.EmailVerification{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	}

	err = r.Transaction(ctx, func(ctx context.Context) error {
		var exists bool
		err := r.Conn(ctx).QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)", userID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrUserNotFound
		}

		if _, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM email_verifications WHERE user_id = $1`, userID); err != nil {
			return err
		}

		query := `
			INSERT INTO email_verifications (id, user_id, email, token, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`

		return r.Conn(ctx).QueryRowContext(ctx, query,
			verification.ID,
			verification.UserID,
			verification.Email,
			verification.Token,
			verification.ExpiresAt,
		).Scan(&verification.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	return verification, nil
}

func (r *emailVerificationRepository) GetByToken(ctx context.Context, token string) (*models.EmailVerification, error) {
	query := `
		SELECT id, user_id, email, token, expires_at, created_at
		FROM email_verifications
		WHERE token = $1`

	v := &models.EmailVerification{}
	err := r.Conn(ctx).QueryRowContext(ctx, query, token).Scan(
		&v.ID,
		&v.UserID,
		&v.Email,
		&v.Token,
		&v.ExpiresAt,
		&v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(v.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}

	return v, nil
}

func (r *emailVerificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM email_verifications WHERE id = $1`, id)
	return err
}

func (r *emailVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM email_verifications WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
