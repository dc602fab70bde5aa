package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the account behind a principal. Every user belongs to exactly one tenant.
type User struct {
	ID            string
	TenantID      string
	Email         string
	Name          string
	Role          Role
	Status        UserStatus
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if !u.Role.Valid() {
		return errors.New("role is invalid")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// NormalizeEmail lower-cases and trims an email for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
