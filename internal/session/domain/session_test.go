package domain

import (
	"testing"
	"time"
)

func TestSession_IsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)
	tests := []struct {
		name string
		s    *Session
		want bool
	}{
		{"active", &Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"revoked", &Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}, false},
		{"expires exactly now", &Session{ExpiresAt: now}, false},
		{"expired", &Session{ExpiresAt: now.Add(-time.Second)}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := tt.s.IsActive(now); got != tt.want {
			t.Errorf("%s: IsActive = %v, want %v", tt.name, got, tt.want)
		}
	}
}
