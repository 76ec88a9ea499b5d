package scheduler

import (
	"context"
	"errors"
	"inkwell/internal/config"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"log"
	"time"
)

const (
	JobPurgeTokens   = "purge-tokens"
	JobPruneAuditLog = "prune-audit-logs"
	JobPruneLimiters = "prune-limiters"
)

// LimiterIdle is how long an in-process bucket may stay untouched before it is dropped
const LimiterIdle = time.Hour

// TokenStores are the repositories holding expiring tokens
type TokenStores struct {
	TwoFactor     repository.TwoFactorRepository
	Verifications repository.EmailVerificationRepository
	Resets        repository.PasswordResetRepository
	RefreshTokens repository.RefreshTokenRepository
}

// PurgeTokens deletes expired two-factor challenges, verification and reset
// tokens and refresh tokens
func PurgeTokens(stores TokenStores, now func() time.Time) Job {
	return JobFunc{JobName: JobPurgeTokens, Fn: func(ctx context.Context) error {
		at := now()
		purges := []struct {
			name string
			fn   func(context.Context, time.Time) (int64, error)
		}{
			{"two-factor challenges", stores.TwoFactor.DeleteExpired},
			{"email verifications", stores.Verifications.DeleteExpired},
			{"password resets", stores.Resets.DeleteExpired},
			{"refresh tokens", stores.RefreshTokens.DeleteExpired},
		}

		var errs []error
		for _, p := range purges {
			n, err := p.fn(ctx, at)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if n > 0 {
				log.Printf("Purged %d expired %s", n, p.name)
			}
		}
		return errors.Join(errs...)
	}}
}

// PruneAuditLogs deletes audit entries older than retention
func PruneAuditLogs(auditRepo repository.AuditLogRepository, retention time.Duration) Job {
	return JobFunc{JobName: JobPruneAuditLog, Fn: func(ctx context.Context) error {
		n, err := auditRepo.CleanupOld(ctx, retention)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("Pruned %d audit logs older than %s", n, retention)
		}
		return nil
	}}
}

// PruneLimiters drops idle in-process rate limit buckets
func PruneLimiters(limiters *ratelimit.Set, idle time.Duration) Job {
	return JobFunc{JobName: JobPruneLimiters, Fn: func(ctx context.Context) error {
		if n := limiters.Prune(idle); n > 0 {
			log.Printf("Pruned %d idle rate limit buckets", n)
		}
		return nil
	}}
}

// NewHousekeeping registers the standard jobs on a new manager
func NewHousekeeping(cfg config.SchedulerConfig, stores TokenStores, auditRepo repository.AuditLogRepository, limiters *ratelimit.Set) *Manager {
	m := NewManager()
	m.Register(PurgeTokens(stores, time.Now), cfg.PurgeSpec)
	m.Register(PruneAuditLogs(auditRepo, cfg.AuditRetention), cfg.AuditSpec)
	m.Register(PruneLimiters(limiters, LimiterIdle), cfg.PurgeSpec)
	return m
}
