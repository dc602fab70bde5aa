package domain

import "time"

// Attempt is one sign-in attempt. Attempts are append-only; lockouts are derived from them.
type Attempt struct {
	ID          string
	Email       string
	IPAddress   string
	Success     bool
	LockedUntil *time.Time // set on the failure that triggered a lockout
	CreatedAt   time.Time
}

// Lockout is an active lockout for an email.
type Lockout struct {
	Email       string
	LockedUntil time.Time
}

// RetryAfter returns how long the lockout still lasts at now, never negative.
func (l *Lockout) RetryAfter(now time.Time) time.Duration {
	if l == nil || !now.Before(l.LockedUntil) {
		return 0
	}
	return l.LockedUntil.Sub(now)
}
