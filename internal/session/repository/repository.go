package repository

import (
	"context"
	"time"

	"saas-core/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error)
	// Revoke marks the session revoked. Revoking an already revoked session keeps the first timestamp.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeIfActive revokes the session only if it is not revoked yet and reports whether this call did it.
	RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	RevokeAllExcept(ctx context.Context, userID, keepID string, at time.Time) (int64, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	// ListActiveByUser returns the user's sessions that are neither revoked nor expired at now, newest first.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
}
