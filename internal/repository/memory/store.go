// Package memory provides in-process implementations of the repository
// interfaces. It backs DB_DRIVER=memory and the handler tests.
package memory

import (
	"context"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds every table. The repositories returned by its accessors share it.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[uuid.UUID]*models.User
	accounts      map[uuid.UUID]*models.Account
	verifications map[uuid.UUID]*models.EmailVerification
	resets        map[uuid.UUID]*models.PasswordReset
	refreshTokens map[string]*models.RefreshToken
	challenges    map[uuid.UUID]*models.TwoFactorChallenge // keyed by user
	posts         map[uuid.UUID]*models.Post
	comments      map[uuid.UUID]*models.Comment
	auditLogs     []models.AuditLog
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[uuid.UUID]*models.User),
		accounts:      make(map[uuid.UUID]*models.Account),
		verifications: make(map[uuid.UUID]*models.EmailVerification),
		resets:        make(map[uuid.UUID]*models.PasswordReset),
		refreshTokens: make(map[string]*models.RefreshToken),
		challenges:    make(map[uuid.UUID]*models.TwoFactorChallenge),
		posts:         make(map[uuid.UUID]*models.Post),
		comments:      make(map[uuid.UUID]*models.Comment),
	}
}

// SetClock replaces the time source used for timestamps and expiry checks
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Transaction runs fn directly. The store has no rollback, so a failing fn
// may leave earlier writes in place.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Repositories returns the repository views of s
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:         &userRepository{s},
		Accounts:      &accountRepository{s},
		Verifications: &emailVerificationRepository{s},
		Resets:        &passwordResetRepository{s},
		RefreshTokens: &refreshTokenRepository{s},
		TwoFactor:     &twoFactorRepository{s},
		Posts:         &postRepository{s},
		Comments:      &commentRepository{s},
		AuditLogs:     &auditLogRepository{s},
	}
}

func (s *Store) liveUser(id uuid.UUID) (*models.User, bool) {
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, false
	}
	return u, true
}

func (s *Store) summary(id uuid.UUID) *models.UserSummary {
	u, ok := s.users[id]
	if !ok {
		return &models.UserSummary{ID: id}
	}
	sum := u.Summary()
	return &sum
}

func page[T any](items []T, limit, offset *int) []T {
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if limit != nil && *limit >= 0 && start+*limit < end {
		end = start + *limit
	}
	return items[start:end]
}
