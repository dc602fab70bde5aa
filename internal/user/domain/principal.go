package domain

// Principal is the verified identity of one request. It is built once by access verification and
// not mutated afterwards.
type Principal struct {
	ID       string
	TenantID string
	Role     Role
	Status   UserStatus

	// SessionID is the session the access token was minted for.
	SessionID string
	// ImpersonationID and ImpersonatorID are set while an administrator acts as this principal.
	ImpersonationID string
	ImpersonatorID  string
}

// PrincipalFromUser builds a principal from a loaded user and the token's session.
func PrincipalFromUser(u *User, sessionID string) *Principal {
	return &Principal{
		ID:        u.ID,
		TenantID:  u.TenantID,
		Role:      u.Role,
		Status:    u.Status,
		SessionID: sessionID,
	}
}

// IsImpersonated reports whether the request is made by an administrator acting as this principal.
func (p *Principal) IsImpersonated() bool {
	return p != nil && p.ImpersonationID != ""
}

// AdminBypass reports whether database tenant filtering is relaxed for this principal.
// An impersonated request never bypasses: it acts with the target's tenant only.
func (p *Principal) AdminBypass() bool {
	return p != nil && p.Role.IsGlobal() && !p.IsImpersonated()
}

// ActorID returns the id of the person behind the request: the administrator while impersonating.
func (p *Principal) ActorID() string {
	if p == nil {
		return ""
	}
	if p.ImpersonatorID != "" {
		return p.ImpersonatorID
	}
	return p.ID
}
