package memory

import (
	"context"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type auditLogRepository struct {
	*Store
}

func (r *auditLogRepository) Create(ctx context.Context, log *models.CreateAuditLogRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	metadata := log.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	r.auditLogs = append(r.auditLogs, models.AuditLog{
		ID:          uuid.New(),
		UserID:      log.UserID,
		Action:      log.Action,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Description: log.Description,
		Metadata:    metadata,
		IPAddress:   log.IPAddress,
		UserAgent:   log.UserAgent,
		CreatedAt:   r.now(),
	})
	return nil
}

func (r *auditLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.auditLogs {
		if l.ID == id {
			out := l
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func matchesAuditFilter(l models.AuditLog, f repository.AuditLogFilter) bool {
	if f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID) {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, l.Action) {
		return false
	}
	if len(f.EntityTypes) > 0 && !slices.Contains(f.EntityTypes, l.EntityType) {
		return false
	}
	if len(f.EntityIDs) > 0 && !slices.Contains(f.EntityIDs, l.EntityID) {
		return false
	}
	if f.CreatedBefore != nil && !l.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.CreatedAfter != nil && !l.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(*f.SearchTerm)
		if !strings.Contains(strings.ToLower(l.Description), term) && !strings.Contains(strings.ToLower(l.Metadata), term) {
			return false
		}
	}
	return true
}

func (r *auditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logs := make([]models.AuditLog, 0)
	for _, l := range r.auditLogs {
		if matchesAuditFilter(l, filter) {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if filter.OrderDesc {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})

	return page(logs, filter.Limit, filter.Offset), nil
}

func (r *auditLogRepository) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	kept := r.auditLogs[:0]
	var removed int64
	for _, l := range r.auditLogs {
		if l.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.auditLogs = kept
	return removed, nil
}
