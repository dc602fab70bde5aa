package repository

import (
	"context"

	"saas-core/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	// Save inserts the entry. inserted is false when an entry with the same event name, aggregate id
	// and occurrence time already exists; that is not an error.
	Save(ctx context.Context, a *domain.AuditLog) (inserted bool, err error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error)
}
