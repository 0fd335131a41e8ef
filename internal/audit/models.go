package audit

import "time"

// Event is an immutable, append-only audit record of a scheduling mutation.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - Audit writes are best-effort; critical flows never block on them.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user (or agent identity) causing the
	// mutation, when known.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers.
	CalendarEventID   string `json:"calendar_event_id,omitempty" db:"calendar_event_id"`
	RecurrenceGroupID string `json:"recurrence_group_id,omitempty" db:"recurrence_group_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details (field diff, refund id).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCreated   EventType = "appointment_created"
	EventTypeSeries    EventType = "series_created"
	EventTypeUpdated   EventType = "appointment_updated"
	EventTypeCancelled EventType = "appointment_cancelled"
)
