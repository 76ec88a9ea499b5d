package repository

import (
	"context"
	"inkwell/internal/models"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Repository
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int, error)
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context) (map[models.Role]int, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, lastLoginAt time.Time) error
	// VerifyEmail marks email as the confirmed address of the user
	VerifyEmail(ctx context.Context, id uuid.UUID, email string, at time.Time) error
}

// UserFilter defines the filter options for listing users
type UserFilter struct {
	Search    *string // Search by name or email
	Role      *models.Role
	OrderBy   string // name, email, created_at or last_login_at
	OrderDesc bool
	Limit     *int
	Offset    *int
}

// AccountRepository stores OAuth provider links
type AccountRepository interface {
	Repository
	Create(ctx context.Context, account *models.Account) error
	GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.Account, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
}
