package memory

import (
	"context"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type userRepository struct {
	*Store
}

func (r *userRepository) emailTaken(email string, except uuid.UUID) bool {
	for _, u := range r.users {
		if u.DeletedAt == nil && u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(user.Email, uuid.Nil) {
		return repository.ErrEmailExists
	}

	now := r.now()
	user.ID = uuid.New()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.liveUser(user.ID)
	if !ok {
		return repository.ErrUserNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return repository.ErrEmailExists
	}

	existing.Name = user.Name
	existing.Email = user.Email
	existing.EmailVerifiedAt = user.EmailVerifiedAt
	existing.Image = user.Image
	existing.IsTwoFactorEnabled = user.IsTwoFactorEnabled
	existing.UpdatedAt = r.now()
	user.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.liveUser(id)
	if !ok {
		return repository.ErrUserNotFound
	}
	now := r.now()
	u.DeletedAt = &now
	u.UpdatedAt = now

	for token, rt := range r.refreshTokens {
		if rt.UserID == id {
			delete(r.refreshTokens, token)
		}
	}
	delete(r.challenges, id)
	for aid, a := range r.accounts {
		if a.UserID == id {
			delete(r.accounts, aid)
		}
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.liveUser(id)
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user := *u
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, u := range r.users {
		if u.DeletedAt == nil && strings.EqualFold(u.Email, email) {
			user := *u
			return &user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if u.DeletedAt != nil {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Search != nil {
			term := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(u.Name), term) && !strings.Contains(strings.ToLower(u.Email), term) {
				continue
			}
		}
		users = append(users, *u)
	}

	less := func(a, b models.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch filter.OrderBy {
	case "name":
		less = func(a, b models.User) bool { return a.Name < b.Name }
	case "email":
		less = func(a, b models.User) bool { return a.Email < b.Email }
	case "last_login_at":
		less = func(a, b models.User) bool {
			if a.LastLoginAt == nil || b.LastLoginAt == nil {
				return a.LastLoginAt != nil
			}
			return a.LastLoginAt.Before(*b.LastLoginAt)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		if filter.OrderDesc {
			return less(users[j], users[i])
		}
		return less(users[i], users[j])
	})

	return page(users, filter.Limit, filter.Offset), len(users), nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, u := range r.users {
		if u.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[models.Role]int{
		models.RoleUser:       0,
		models.RoleAdmin:      0,
		models.RoleSuperAdmin: 0,
	}
	for _, u := range r.users {
		if u.DeletedAt == nil {
			counts[u.Role]++
		}
	}
	return counts, nil
}

func (r *userRepository) update(id uuid.UUID, fn func(u *models.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.liveUser(id)
	if !ok {
		return repository.ErrUserNotFound
	}
	return fn(u)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return r.update(id, func(u *models.User) error {
		u.Password = &hashedPassword
		u.UpdatedAt = r.now()
		return nil
	})
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	return r.update(id, func(u *models.User) error {
		u.Role = role
		u.UpdatedAt = r.now()
		return nil
	})
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, lastLoginAt time.Time) error {
	return r.update(id, func(u *models.User) error {
		u.LastLoginAt = &lastLoginAt
		return nil
	})
}

func (r *userRepository) VerifyEmail(ctx context.Context, id uuid.UUID, email string, at time.Time) error {
	return r.update(id, func(u *models.User) error {
		if r.emailTaken(email, id) {
			return repository.ErrEmailExists
		}
		u.Email = email
		u.EmailVerifiedAt = &at
		u.UpdatedAt = at
		return nil
	})
}

type accountRepository struct {
	*Store
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Provider == account.Provider && a.ProviderAccountID == account.ProviderAccountID {
			return repository.ErrAccountExists
		}
	}
	if _, ok := r.liveUser(account.UserID); !ok {
		return repository.ErrUserNotFound
	}

	account.ID = uuid.New()
	account.CreatedAt = r.now()
	stored := *account
	r.accounts[account.ID] = &stored
	return nil
}

func (r *accountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			account := *a
			return &account, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *accountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]models.Account, 0)
	for _, a := range r.accounts {
		if a.UserID == userID {
			accounts = append(accounts, *a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Provider < accounts[j].Provider })
	return accounts, nil
}
