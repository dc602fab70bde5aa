package domain

import (
	"errors"
	"strings"
	"time"
)

// Tenant is one customer account. Every tenant-owned row references it.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(t.Slug) == "" {
		return errors.New("slug is required")
	}
	return nil
}

// Workspace is a tenant-owned container that memberships can be scoped to.
type Workspace struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
}

// Validate validates the workspace for persistence.
func (w *Workspace) Validate() error {
	if w.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}
