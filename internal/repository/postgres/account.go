package postgres

import (
	"context"
	"database/sql"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/google/uuid"
)

type accountRepository struct {
	repository.BaseRepository
}

// NewAccountRepository creates a new PostgreSQL OAuth account repository
func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, provider, provider_account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	account.ID = uuid.New()
	err := r.Conn(ctx).QueryRowContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
	).Scan(&account.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrAccountExists
	}
	return err
}

func (r *accountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2`

	account := &models.Account{}
	err := r.Conn(ctx).QueryRowContext(ctx, query, provider, providerAccountID).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderAccountID,
		&account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.Conn(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
