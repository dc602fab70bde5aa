package domain

import "time"

// Origin records how a session came to exist.
type Origin string

const (
	OriginLogin         Origin = "login"
	OriginRefresh       Origin = "refresh"
	OriginImpersonation Origin = "impersonation"
)

// Session is one login session. Each refresh revokes the row and creates a successor, so a
// refresh token maps to exactly one row for its whole life.
type Session struct {
	ID       string
	UserID   string
	TenantID string
	// RefreshTokenHash is the SHA-256 hex of the current refresh token; the raw token is never stored.
	RefreshTokenHash       string
	DeviceID               string
	IPAddress              string
	UserAgent              string
	Origin                 Origin
	ImpersonationSessionID string // empty unless Origin is OriginImpersonation
	CreatedAt              time.Time
	LastSeenAt             time.Time
	ExpiresAt              time.Time
	RevokedAt              *time.Time // nil when not revoked
}

// IsRevoked reports whether the session was explicitly revoked.
func (s *Session) IsRevoked() bool { return s.RevokedAt != nil }

// IsExpired reports whether the session's lifetime has passed at now.
func (s *Session) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// IsActive reports whether the session can still be used at now.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && !s.IsRevoked() && !s.IsExpired(now)
}
