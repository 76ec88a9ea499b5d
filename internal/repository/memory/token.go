package memory

import (
	"context"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"time"

	"github.com/google/uuid"
)

type emailVerificationRepository struct {
	*Store
}

func (r *emailVerificationRepository) Create(ctx context.Context, userID uuid.UUID, email string, ttl time.Duration) (*models.EmailVerification, error) {
	token, err := repository.GenerateToken(repository.VerificationTokenLength)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.liveUser(userID); !ok {
		return nil, repository.ErrUserNotFound
	}
	for id, v := range r.verifications {
		if v.UserID == userID {
			delete(r.verifications, id)
		}
	}

	now := r.now()
	v := &models.EmailVerification{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	r.verifications[v.ID] = v

	out := *v
	return &out, nil
}

func (r *emailVerificationRepository) GetByToken(ctx context.Context, token string) (*models.EmailVerification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.verifications {
		if v.Token != token {
			continue
		}
		if r.now().After(v.ExpiresAt) {
			return nil, repository.ErrTokenExpired
		}
		out := *v
		return &out, nil
	}
	return nil, repository.ErrTokenInvalid
}

func (r *emailVerificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.verifications, id)
	return nil
}

func (r *emailVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, v := range r.verifications {
		if v.ExpiresAt.Before(now) {
			delete(r.verifications, id)
			n++
		}
	}
	return n, nil
}

type passwordResetRepository struct {
	*Store
}

func (r *passwordResetRepository) Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*models.PasswordReset, error) {
	token, err := repository.GenerateToken(repository.ResetTokenLength)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.liveUser(userID); !ok {
		return nil, repository.ErrUserNotFound
	}

	now := r.now()
	reset := &models.PasswordReset{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	r.resets[reset.ID] = reset

	out := *reset
	return &out, nil
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, reset := range r.resets {
		if reset.Token != token {
			continue
		}
		if reset.UsedAt != nil {
			return nil, repository.ErrTokenUsed
		}
		if r.now().After(reset.ExpiresAt) {
			return nil, repository.ErrTokenExpired
		}
		out := *reset
		return &out, nil
	}
	return nil, repository.ErrTokenInvalid
}

func (r *passwordResetRepository) MarkAsUsed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.resets[id]
	if !ok || reset.UsedAt != nil {
		return repository.ErrTokenInvalid
	}
	now := r.now()
	reset.UsedAt = &now
	return nil
}

func (r *passwordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, reset := range r.resets {
		if reset.ExpiresAt.Before(now) || reset.UsedAt != nil {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

type refreshTokenRepository struct {
	*Store
}

func (r *refreshTokenRepository) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.liveUser(userID); !ok {
		return repository.ErrUserNotFound
	}
	r.refreshTokens[token] = &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}
	return nil
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.refreshTokens[token]
	if !ok {
		return nil, repository.ErrTokenInvalid
	}
	if r.now().After(rt.ExpiresAt) {
		return nil, repository.ErrTokenExpired
	}
	out := *rt
	return &out, nil
}

func (r *refreshTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.refreshTokens[token]; !ok {
		return repository.ErrTokenInvalid
	}
	delete(r.refreshTokens, token)
	return nil
}

func (r *refreshTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, rt := range r.refreshTokens {
		if rt.UserID == userID {
			delete(r.refreshTokens, token)
		}
	}
	return nil
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, rt := range r.refreshTokens {
		if rt.ExpiresAt.Before(now) {
			delete(r.refreshTokens, token)
			n++
		}
	}
	return n, nil
}

type twoFactorRepository struct {
	*Store
}

func (r *twoFactorRepository) Replace(ctx context.Context, challenge *models.TwoFactorChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge.ID = uuid.New()
	challenge.CreatedAt = r.now()
	stored := *challenge
	r.challenges[challenge.UserID] = &stored
	return nil
}

func (r *twoFactorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.TwoFactorChallenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.challenges[userID]
	if !ok {
		return nil, repository.ErrChallengeNotFound
	}
	out := *c
	return &out, nil
}

func (r *twoFactorRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, userID)
	return nil
}

func (r *twoFactorRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for userID, c := range r.challenges {
		if c.ExpiresAt.Before(now) {
			delete(r.challenges, userID)
			n++
		}
	}
	return n, nil
}
