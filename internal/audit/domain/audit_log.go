package domain

import (
	"time"

	"saas-core/backend/internal/events"
)

// AuditLog is one persisted domain event. (EventName, AggregateID, OccurredAt) identifies it, so a
// redelivered event maps onto the same row.
type AuditLog struct {
	ID          string
	TenantID    string // empty for events outside any tenant, e.g. a failed sign-in for an unknown email
	EventName   string
	AggregateID string
	ActorID     string
	RequestID   string
	Payload     map[string]any
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// FromEvent maps an event taken off the job queue to its audit row.
func FromEvent(e events.Event) *AuditLog {
	return &AuditLog{
		ID:          e.ID,
		TenantID:    e.TenantID,
		EventName:   e.Name,
		AggregateID: e.AggregateID,
		ActorID:     e.ActorID,
		RequestID:   e.RequestID,
		Payload:     e.Payload,
		OccurredAt:  e.OccurredAt,
	}
}
