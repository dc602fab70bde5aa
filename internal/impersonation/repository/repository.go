package repository

import (
	"context"
	"time"

	"saas-core/backend/internal/impersonation/domain"
)

// Repository defines persistence for impersonation sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// End sets ended_at if it is not set yet and reports whether this call ended the session.
	End(ctx context.Context, id string, at time.Time) (bool, error)
	// GetActiveByAdmin returns an impersonation the admin started that is still active at now, or nil.
	GetActiveByAdmin(ctx context.Context, adminID string, now time.Time) (*domain.Session, error)
}
