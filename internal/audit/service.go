package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It MUST be append-only; no Update/Delete methods exist by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information for appointment mutations.
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogMutation records a create/update against one appointment.
func (s *Service) LogMutation(ctx context.Context, typ EventType, tenantID, actorUserID, actorRole, eventID, groupID, message string) error {
	return s.Append(ctx, Event{
		TenantID:          tenantID,
		Type:              typ,
		ActorUserID:       actorUserID,
		ActorRole:         actorRole,
		CalendarEventID:   eventID,
		RecurrenceGroupID: groupID,
		Message:           message,
	})
}

// LogCancellation records a cancellation together with refund metadata.
func (s *Service) LogCancellation(ctx context.Context, tenantID, actorUserID, actorRole, eventID, metadata string) error {
	return s.Append(ctx, Event{
		TenantID:        tenantID,
		Type:            EventTypeCancelled,
		ActorUserID:     actorUserID,
		ActorRole:       actorRole,
		CalendarEventID: eventID,
		Message:         "appointment cancelled",
		Metadata:        metadata,
	})
}
