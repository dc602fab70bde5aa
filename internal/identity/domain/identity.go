package domain

import "time"

// Identity represents a user's linked credential. Only local password identities take part in sign-in.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string // empty if not local
	CreatedAt    time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal IdentityProvider = "local"
	IdentityProviderOIDC  IdentityProvider = "oidc"
)

// HasPassword reports whether the identity can be used for password sign-in.
func (i *Identity) HasPassword() bool {
	return i != nil && i.Provider == IdentityProviderLocal && i.PasswordHash != ""
}
