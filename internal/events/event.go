// Package events records domain events produced by commands and hands them to the job queue.
//
// Inside a tenant transaction events are collected on the context and enqueued only after the
// transaction commits, so a rolled back command never emits. Delivery is at-least-once; consumers
// deduplicate on (name, aggregate id, occurred at).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"saas-core/backend/internal/platform/requestctx"
)

// Event is one domain fact.
type Event struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	AggregateID string         `json:"aggregate_id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	ActorID     string         `json:"actor_id,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// New returns an event stamped with a fresh id, the request id from ctx and the current time.
// OccurredAt is truncated to microseconds so it survives a round trip through Postgres unchanged.
func New(ctx context.Context, name, aggregateID string, payload map[string]any) Event {
	return Event{
		ID:          uuid.NewString(),
		Name:        name,
		AggregateID: aggregateID,
		RequestID:   requestctx.RequestIDFromContext(ctx),
		OccurredAt:  time.Now().UTC().Truncate(time.Microsecond),
		Payload:     payload,
	}
}

// WithTenant sets the tenant and actor and returns the event.
func (e Event) WithTenant(tenantID, actorID string) Event {
	e.TenantID = tenantID
	e.ActorID = actorID
	return e
}

// Marshal encodes the event as the job payload.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes a job payload produced by Marshal.
func Unmarshal(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}

// Names of events produced by this service.
const (
	SignInSucceeded      = "auth.sign_in_succeeded"
	SignInFailed         = "auth.sign_in_failed"
	AccountLocked        = "auth.account_locked"
	TokenRefreshed       = "auth.token_refreshed"
	TokenReuseDetected   = "auth.token_reuse_detected"
	LoggedOut            = "auth.logged_out"
	LoggedOutAll         = "auth.logged_out_all"
	SessionRevoked       = "session.revoked"
	OtherSessionsRevoked = "session.others_revoked"
	ImpersonationStarted = "impersonation.started"
	ImpersonationEnded   = "impersonation.ended"
)
