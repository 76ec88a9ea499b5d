package scheduler

import (
	"context"
	"errors"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"inkwell/internal/repository/memory"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_RunJob(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	runs := 0
	m.Register(JobFunc{JobName: "count", Fn: func(ctx context.Context) error {
		runs++
		return nil
	}}, "*/5 * * * *")
	m.Register(JobFunc{JobName: "fail", Fn: func(ctx context.Context) error {
		return errors.New("boom")
	}}, "*/5 * * * *")

	require.Equal(t, []string{"count", "fail"}, m.Jobs())

	tests := []struct {
		name    string
		job     string
		wantErr error
	}{
		{name: "Runs Job", job: "count"},
		{name: "Unknown Job", job: "missing", wantErr: ErrJobNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.RunJob(ctx, tt.job)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
	require.Equal(t, 1, runs)
	require.EqualError(t, m.RunJob(ctx, "fail"), "boom")
}

func TestManager_StartRejectsBadSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
	}{
		{name: "Empty", schedule: ""},
		{name: "Invalid", schedule: "not a cron spec"},
		{name: "Seconds Field", schedule: "0 0 0 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.Register(JobFunc{JobName: "job", Fn: func(ctx context.Context) error { return nil }}, tt.schedule)
			require.Error(t, m.Start(context.Background()))
		})
	}
}

func TestManager_StartStops(t *testing.T) {
	m := NewManager()
	m.Register(JobFunc{JobName: "job", Fn: func(ctx context.Context) error { return nil }}, "*/5 * * * *")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestPurgeTokens(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()

	user := &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, repos.Users.Create(ctx, user))

	now := time.Now()
	require.NoError(t, repos.RefreshTokens.Create(ctx, user.ID, "stale", now.Add(-time.Hour)))
	require.NoError(t, repos.RefreshTokens.Create(ctx, user.ID, "fresh", now.Add(time.Hour)))
	require.NoError(t, repos.TwoFactor.Replace(ctx, &models.TwoFactorChallenge{UserID: user.ID, Code: "123456", ExpiresAt: now.Add(-time.Minute)}))
	_, err := repos.Verifications.Create(ctx, user.ID, user.Email, -time.Minute)
	require.NoError(t, err)

	job := PurgeTokens(TokenStores{
		TwoFactor:     repos.TwoFactor,
		Verifications: repos.Verifications,
		Resets:        repos.Resets,
		RefreshTokens: repos.RefreshTokens,
	}, func() time.Time { return now })
	require.Equal(t, JobPurgeTokens, job.Name())
	require.NoError(t, job.Run(ctx))

	_, err = repos.RefreshTokens.GetByToken(ctx, "fresh")
	require.NoError(t, err)
	_, err = repos.RefreshTokens.GetByToken(ctx, "stale")
	require.Error(t, err)
	_, err = repos.TwoFactor.GetByUserID(ctx, user.ID)
	require.Error(t, err)
}

func TestPruneAuditLogs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()

	require.NoError(t, repos.AuditLogs.Create(ctx, &models.CreateAuditLogRequest{
		Action: models.AuditActionLogin, EntityType: "user", EntityID: "1", Description: "old",
	}))
	store.SetClock(func() time.Time { return time.Now().Add(100 * 24 * time.Hour) })
	require.NoError(t, repos.AuditLogs.Create(ctx, &models.CreateAuditLogRequest{
		Action: models.AuditActionLogin, EntityType: "user", EntityID: "2", Description: "new",
	}))

	require.NoError(t, PruneAuditLogs(repos.AuditLogs, 90*24*time.Hour).Run(ctx))

	logs, err := repos.AuditLogs.List(ctx, repository.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "new", logs[0].Description)
}

func TestNewHousekeeping(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	limiters := ratelimit.NewSet(ratelimit.MemoryFactory(), map[string]ratelimit.Policy{
		ratelimit.ActionLogin: {Requests: 5, Window: time.Minute},
	})

	m := NewHousekeeping(config.SchedulerConfig{PurgeSpec: "*/10 * * * *", AuditSpec: "0 3 * * *", AuditRetention: time.Hour},
		TokenStores{TwoFactor: repos.TwoFactor, Verifications: repos.Verifications, Resets: repos.Resets, RefreshTokens: repos.RefreshTokens},
		repos.AuditLogs, limiters)

	require.ElementsMatch(t, []string{JobPurgeTokens, JobPruneAuditLog, JobPruneLimiters}, m.Jobs())
	require.NoError(t, m.RunJob(context.Background(), JobPruneLimiters))
}
