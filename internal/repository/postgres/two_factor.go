package postgres

import (
	"context"
	"database/sql"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"time"

	"github.com/google/uuid"
)

type twoFactorRepository struct {
	repository.BaseRepository
}

// NewTwoFactorRepository creates a new PostgreSQL two-factor challenge repository
func NewTwoFactorRepository(db *sql.DB) repository.TwoFactorRepository {
	return &twoFactorRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *twoFactorRepository) Replace(ctx context.Context, challenge *models.TwoFactorChallenge) error {
	query := `
		INSERT INTO two_factor_challenges (id, user_id, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id,
			code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`

	challenge.ID = uuid.New()
	challenge.CreatedAt = time.Now()

	_, err := r.Conn(ctx).ExecContext(ctx, query,
		challenge.ID,
		challenge.UserID,
		challenge.Code,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)
	return err
}

func (r *twoFactorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.TwoFactorChallenge, error) {
	query := `
		SELECT id, user_id, code, expires_at, created_at
		FROM two_factor_challenges
		WHERE user_id = $1`

	c := &models.TwoFactorChallenge{}
	err := r.Conn(ctx).QueryRowContext(ctx, query, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.Code,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *twoFactorRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE user_id = $1`, userID)
	return err
}

func (r *twoFactorRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
