package domain

import (
	"strings"
	"time"
)

const (
	// Duration is the fixed lifetime of an impersonation session. It is never extended.
	Duration = 30 * time.Minute
	// MinReasonLength is the minimum length of the trimmed justification.
	MinReasonLength = 10
)

// Session is a time-boxed grant letting AdminID act as TargetID.
type Session struct {
	ID        string
	AdminID   string
	TargetID  string
	TenantID  string // the target's tenant
	Reason    string
	StartedAt time.Time
	ExpiresAt time.Time
	EndedAt   *time.Time
}

// IsEnded reports whether the session was ended explicitly.
func (s *Session) IsEnded() bool { return s.EndedAt != nil }

// IsExpired reports whether the fixed window has passed at now.
func (s *Session) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// IsActive reports whether the grant is still usable at now.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && !s.IsEnded() && !s.IsExpired(now)
}

// ValidReason reports whether reason is long enough once surrounding whitespace is removed.
func ValidReason(reason string) bool {
	return len([]rune(strings.TrimSpace(reason))) >= MinReasonLength
}
