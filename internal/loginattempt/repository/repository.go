package repository

import (
	"context"
	"time"

	"saas-core/backend/internal/loginattempt/domain"
)

// Repository defines persistence for login attempts. Emails are compared case-insensitively.
type Repository interface {
	// FindLockoutByEmail returns the most recent lockout for email that is still in force at now, or nil.
	FindLockoutByEmail(ctx context.Context, email string, now time.Time) (*domain.Lockout, error)
	// CountRecentFailures counts failed attempts for email created at or after since.
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)
	Record(ctx context.Context, a *domain.Attempt) error
	// RecordFailure atomically records the failed attempt a, counts failures since since (a included)
	// and, when the count reaches threshold, stores a lockout of lockFor on a. Returns the count.
	RecordFailure(ctx context.Context, a *domain.Attempt, since time.Time, threshold int, lockFor time.Duration) (int, error)
}
