package repository

import (
	"context"

	"saas-core/backend/internal/membership/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	// GetRole returns the user's role within scopeID, or "" when the user holds no membership there.
	GetRole(ctx context.Context, userID, scopeID string) (userdomain.Role, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	// Upsert creates the membership or updates the role of an existing one for (user, scope).
	Upsert(ctx context.Context, m *domain.Membership) error
}
