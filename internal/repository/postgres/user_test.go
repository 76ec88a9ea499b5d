package postgres_test

import (
	"context"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/repository/postgres/integration"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	tc := integration.NewTestContext(t)

	tests := []struct {
		name    string
		input   models.User
		wantErr error
	}{
		{
			name:  "Success",
			input: models.User{Name: "Ada", Email: "ada@example.com"},
		},
		{
			name:    "Duplicate Email",
			input:   models.User{Name: "Ada Again", Email: "ada@example.com"},
			wantErr: repository.ErrEmailExists,
		},
		{
			name:    "Duplicate Email Different Case",
			input:   models.User{Name: "ADA", Email: "ADA@Example.com"},
			wantErr: repository.ErrEmailExists,
		},
		{
			name:  "OAuth User Without Password",
			input: models.User{Name: "Grace", Email: "grace@example.com", Role: models.RoleAdmin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tc.UserRepo.Create(context.Background(), &tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, tt.input.ID)
			require.False(t, tt.input.CreatedAt.IsZero())

			saved, err := tc.UserRepo.GetByID(context.Background(), tt.input.ID)
			require.NoError(t, err)
			require.Equal(t, tt.input.Name, saved.Name)
			require.Equal(t, tt.input.Email, saved.Email)
			require.NotEmpty(t, saved.Role)
			require.False(t, saved.HasPassword())
		})
	}
}

func TestUserRepository_Update(t *testing.T) {
	tc := integration.NewTestContext(t)
	user := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843")
	other := tc.CreateTestUser("Grace", "grace@example.com", "compiler1952")

	tests := []struct {
		name    string
		mutate  func(u *models.User)
		wantErr error
	}{
		{
			name: "Success",
			mutate: func(u *models.User) {
				u.Name = "Ada Lovelace"
				u.IsTwoFactorEnabled = true
			},
		},
		{
			name:    "Duplicate Email",
			mutate:  func(u *models.User) { u.Email = other.Email },
			wantErr: repository.ErrEmailExists,
		},
		{
			name:    "Non-existent ID",
			mutate:  func(u *models.User) { u.ID = uuid.New() },
			wantErr: repository.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := *user
			tt.mutate(&input)

			err := tc.UserRepo.Update(context.Background(), &input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			updated, err := tc.UserRepo.GetByID(context.Background(), input.ID)
			require.NoError(t, err)
			require.Equal(t, input.Name, updated.Name)
			require.Equal(t, input.IsTwoFactorEnabled, updated.IsTwoFactorEnabled)
			require.True(t, updated.HasPassword(), "update must not touch the password")
		})
	}
}

func TestUserRepository_Delete(t *testing.T) {
	tc := integration.NewTestContext(t)
	ctx := context.Background()
	user := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843")

	require.NoError(t, tc.RefreshTokenRepo.Create(ctx, user.ID, "refresh", time.Now().Add(time.Hour)))
	require.NoError(t, tc.AccountRepo.Create(ctx, &models.Account{UserID: user.ID, Provider: "github", ProviderAccountID: "42"}))

	tests := []struct {
		name    string
		id      uuid.UUID
		wantErr error
	}{
		{name: "Success", id: user.ID},
		{name: "Already Deleted", id: user.ID, wantErr: repository.ErrUserNotFound},
		{name: "Non-existent ID", id: uuid.New(), wantErr: repository.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tc.UserRepo.Delete(ctx, tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			var deletedAt *time.Time
			err = tc.DB.QueryRowContext(ctx, "SELECT deleted_at FROM users WHERE id = $1", tt.id).Scan(&deletedAt)
			require.NoError(t, err)
			require.NotNil(t, deletedAt)

			_, err = tc.UserRepo.GetByID(ctx, tt.id)
			require.ErrorIs(t, err, repository.ErrUserNotFound)

			_, err = tc.RefreshTokenRepo.GetByToken(ctx, "refresh")
			require.ErrorIs(t, err, repository.ErrTokenInvalid)

			_, err = tc.AccountRepo.GetByProvider(ctx, "github", "42")
			require.ErrorIs(t, err, repository.ErrAccountNotFound)
		})
	}

	// The address can be registered again
	tc.CreateTestUser("Ada", "ada@example.com", "analytical1843")
}

func TestUserRepository_GetByEmail(t *testing.T) {
	tc := integration.NewTestContext(t)
	user := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843")

	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{name: "Exact", email: "ada@example.com"},
		{name: "Mixed Case", email: "Ada@Example.COM"},
		{name: "Surrounding Spaces", email: "  ada@example.com "},
		{name: "Unknown", email: "nobody@example.com", wantErr: repository.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tc.UserRepo.GetByEmail(context.Background(), tt.email)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, result)
				return
			}
			require.NoError(t, err)
			require.Equal(t, user.ID, result.ID)
		})
	}
}

func TestUserRepository_List(t *testing.T) {
	tc := integration.NewTestContext(t)
	ctx := context.Background()

	tc.CreateTestUser("Charlie", "charlie@example.com", "password123")
	tc.CreateTestUser("Alice", "alice@example.com", "password123")
	bob := tc.CreateTestUser("Bob", "bob@example.com", "password123")
	require.NoError(t, tc.UserRepo.UpdateRole(ctx, bob.ID, models.RoleAdmin))

	limit := 2
	offset := 1
	admin := models.RoleAdmin
	search := "li"

	tests := []struct {
		name      string
		filter    repository.UserFilter
		wantNames []string
		wantTotal int
	}{
		{
			name:      "Order By Name",
			filter:    repository.UserFilter{OrderBy: "name"},
			wantNames: []string{"Alice", "Bob", "Charlie"},
			wantTotal: 3,
		},
		{
			name:      "Order By Name Desc With Paging",
			filter:    repository.UserFilter{OrderBy: "name", OrderDesc: true, Limit: &limit, Offset: &offset},
			wantNames: []string{"Bob", "Alice"},
			wantTotal: 3,
		},
		{
			name:      "Filter By Role",
			filter:    repository.UserFilter{Role: &admin},
			wantNames: []string{"Bob"},
			wantTotal: 1,
		},
		{
			name:      "Search",
			filter:    repository.UserFilter{Search: &search, OrderBy: "name"},
			wantNames: []string{"Alice", "Charlie"},
			wantTotal: 2,
		},
		{
			name:      "Unknown Order Column Falls Back",
			filter:    repository.UserFilter{OrderBy: "password; DROP TABLE users"},
			wantNames: []string{"Charlie", "Alice", "Bob"},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, total, err := tc.UserRepo.List(ctx, tt.filter)
			require.NoError(t, err)
			require.Equal(t, tt.wantTotal, total)

			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.Name
			}
			require.Equal(t, tt.wantNames, names)
		})
	}

	counts, err := tc.UserRepo.CountByRole(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts[models.RoleUser])
	require.Equal(t, 1, counts[models.RoleAdmin])
	require.Equal(t, 0, counts[models.RoleSuperAdmin])
}

func TestUserRepository_VerifyEmail(t *testing.T) {
	tc := integration.NewTestContext(t)
	ctx := context.Background()
	ada := tc.CreateTestUser("Ada", "ada@example.com", "password123")
	grace := tc.CreateTestUser("Grace", "grace@example.com", "password123")

	now := time.Now().UTC().Truncate(time.Second)

	require.ErrorIs(t, tc.UserRepo.VerifyEmail(ctx, ada.ID, grace.Email, now), repository.ErrEmailExists)
	require.ErrorIs(t, tc.UserRepo.VerifyEmail(ctx, uuid.New(), "x@example.com", now), repository.ErrUserNotFound)

	require.NoError(t, tc.UserRepo.VerifyEmail(ctx, ada.ID, "ada@lovelace.dev", now))
	saved, err := tc.UserRepo.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	require.Equal(t, "ada@lovelace.dev", saved.Email)
	require.NotNil(t, saved.EmailVerifiedAt)
	require.Equal(t, now.Unix(), saved.EmailVerifiedAt.Unix())
}

func TestUserRepository_PasswordAndLogin(t *testing.T) {
	tc := integration.NewTestContext(t)
	ctx := context.Background()
	user := tc.CreateTestUser("Ada", "ada@example.com", "password123")

	require.NoError(t, tc.UserRepo.UpdatePassword(ctx, user.ID, "new-hash"))
	at := time.Now().UTC()
	require.NoError(t, tc.UserRepo.UpdateLastLogin(ctx, user.ID, at))

	saved, err := tc.UserRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", *saved.Password)
	require.NotNil(t, saved.LastLoginAt)

	require.ErrorIs(t, tc.UserRepo.UpdatePassword(ctx, uuid.New(), "x"), repository.ErrUserNotFound)
}

func TestAccountRepository(t *testing.T) {
	tc := integration.NewTestContext(t)
	ctx := context.Background()
	user := tc.CreateTestUser("Ada", "ada@example.com", "password123")

	account := &models.Account{UserID: user.ID, Provider: "google", ProviderAccountID: "g-1"}
	require.NoError(t, tc.AccountRepo.Create(ctx, account))
	require.ErrorIs(t, tc.AccountRepo.Create(ctx, &models.Account{UserID: user.ID, Provider: "google", ProviderAccountID: "g-1"}), repository.ErrAccountExists)

	got, err := tc.AccountRepo.GetByProvider(ctx, "google", "g-1")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.UserID)

	accounts, err := tc.AccountRepo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestBaseRepository_TransactionRollsBack(t *testing.T) {
	tc := integration.NewTestContext(t)
	ctx := context.Background()
	user := tc.CreateTestUser("Ada", "ada@example.com", "password123")

	err := tc.UserRepo.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, tc.UserRepo.UpdateRole(ctx, user.ID, models.RoleSuperAdmin))
		return repository.ErrConflict
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	saved, err := tc.UserRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, saved.Role)
}
