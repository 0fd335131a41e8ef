package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cally-platform/internal/audit"
	"cally-platform/internal/auth"
	"cally-platform/pkg/logger"
)

// CreateEventInput carries everything needed to book one appointment or a
// recurring series. Timezone is the tenant's IANA zone; the local partition
// date is always derived from it, never from the UTC date.
type CreateEventInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Color       string `json:"color,omitempty"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	IsAllDay        bool      `json:"is_all_day,omitempty"`

	Status   EventStatus `json:"status,omitempty"`
	Timezone string      `json:"timezone,omitempty"`

	VisitorName  string `json:"visitor_name,omitempty"`
	VisitorEmail string `json:"visitor_email,omitempty"`

	VideoRoomID     string `json:"video_room_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`

	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`
}

func (in *CreateEventInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if in.StartTime.IsZero() {
		return fmt.Errorf("%w: start time required", ErrValidation)
	}
	if in.EndTime.IsZero() {
		if in.DurationMinutes <= 0 {
			return fmt.Errorf("%w: end time or duration required", ErrValidation)
		}
		in.EndTime = in.StartTime.Add(time.Duration(in.DurationMinutes) * time.Minute)
	}
	if !in.EndTime.After(in.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}
	if in.Status == "" {
		in.Status = StatusScheduled
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}
	// A single shared video room across N occurrences would be wrong;
	// recurring series cannot carry one.
	if in.VideoRoomID != "" && in.Recurrence != nil {
		return fmt.Errorf("%w: video conferencing is not supported on recurring events", ErrValidation)
	}
	if in.Recurrence != nil {
		return in.Recurrence.Validate()
	}
	return nil
}

func (s *Service) buildEvent(tenantID string, in CreateEventInput, now time.Time) CalendarEvent {
	return CalendarEvent{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Date:            s.tz.LocalDate(in.Timezone, in.StartTime),
		StartTime:       in.StartTime.UTC(),
		EndTime:         in.EndTime.UTC(),
		DurationMinutes: in.DurationMinutes,
		IsAllDay:        in.IsAllDay,
		Title:           in.Title,
		Description:     in.Description,
		Location:        in.Location,
		Notes:           in.Notes,
		Color:           in.Color,
		Status:          in.Status,
		VisitorName:     in.VisitorName,
		VisitorEmail:    in.VisitorEmail,
		VideoRoomID:     in.VideoRoomID,
		PaymentIntentID: in.PaymentIntentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CreateEvent books a single appointment. Recurring input goes through
// CreateRecurring instead.
func (s *Service) CreateEvent(ctx context.Context, tenantID string, in CreateEventInput) (CalendarEvent, error) {
	if tenantID == "" {
		return CalendarEvent{}, fmt.Errorf("%w: tenant id required", ErrValidation)
	}
	if in.Recurrence != nil {
		return CalendarEvent{}, fmt.Errorf("%w: recurring input on single-event create", ErrValidation)
	}
	if err := in.validate(); err != nil {
		return CalendarEvent{}, err
	}

	ev := s.buildEvent(tenantID, in, s.clock().UTC())
	if err := s.repo.Create(ctx, ev); err != nil {
		return CalendarEvent{}, err
	}

	s.auditMutation(ctx, audit.EventTypeCreated, ev, "appointment created")
	s.enqueueSync(ctx, SyncJob{TenantID: tenantID, Date: ev.Date, EventID: ev.ID, Op: SyncOpCreate, Timezone: in.Timezone})
	return ev, nil
}

// CreateRecurringResult summarizes a series creation. Created < Requested
// signals a partial batch: the occurrences that did persist are valid and
// visible, so partial success is reported, never rolled back.
type CreateRecurringResult struct {
	Requested int    `json:"requested"`
	Created   int    `json:"created"`
	GroupID   string `json:"recurrence_group_id"`
	FirstID   string `json:"first_event_id,omitempty"`

	// FailureReason is set when creation stopped early.
	FailureReason string `json:"failure_reason,omitempty"`
}

// CreateRecurring expands the rule and materializes one event per
// occurrence, one store write each. Not transactional: if occurrence k
// fails, occurrences 1..k-1 remain and the summary reports the shortfall.
//
// Each occurrence keeps the first occurrence's wall-clock time-of-day via
// transplant and re-applies the original duration in milliseconds, so a DST
// transition between occurrences cannot change apparent length. Only the
// first occurrence stores the rule; the rest carry just the group id.
func (s *Service) CreateRecurring(ctx context.Context, tenantID string, in CreateEventInput) (CreateRecurringResult, error) {
	if tenantID == "" {
		return CreateRecurringResult{}, fmt.Errorf("%w: tenant id required", ErrValidation)
	}
	if in.Recurrence == nil {
		return CreateRecurringResult{}, fmt.Errorf("%w: recurrence rule required", ErrValidation)
	}
	if err := in.validate(); err != nil {
		return CreateRecurringResult{}, err
	}

	loc := s.tz.Location(in.Timezone)
	dates, err := ExpandDates(in.StartTime, loc, *in.Recurrence)
	if err != nil {
		return CreateRecurringResult{}, err
	}

	now := s.clock().UTC()
	groupID := uuid.NewString()
	duration := in.EndTime.Sub(in.StartTime)

	res := CreateRecurringResult{Requested: len(dates), GroupID: groupID}
	for i, d := range dates {
		start, terr := s.tz.Transplant(in.StartTime, d, in.Timezone)
		if terr != nil {
			res.FailureReason = terr.Error()
			break
		}

		occ := in
		occ.StartTime = start
		occ.EndTime = start.Add(duration)

		ev := s.buildEvent(tenantID, occ, now)
		ev.Date = d
		ev.RecurrenceGroupID = groupID
		if i == 0 {
			ev.Rule = in.Recurrence
		}

		if cerr := s.repo.Create(ctx, ev); cerr != nil {
			logger.From(ctx).Warn("recurring occurrence create failed",
				"tenant_id", tenantID, "group_id", groupID, "occurrence", i+1, "err", cerr)
			res.FailureReason = cerr.Error()
			break
		}
		// FirstID points at a persisted event only.
		if i == 0 {
			res.FirstID = ev.ID
		}
		res.Created++

		s.enqueueSync(ctx, SyncJob{TenantID: tenantID, Date: ev.Date, EventID: ev.ID, Op: SyncOpCreate, Timezone: in.Timezone})
	}

	s.auditSeries(ctx, tenantID, groupID, res)
	return res, nil
}

func (s *Service) auditMutation(ctx context.Context, typ audit.EventType, ev CalendarEvent, msg string) {
	if s.audits == nil {
		return
	}
	actor, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if err := s.audits.LogMutation(ctx, typ, ev.TenantID, actor, role, ev.ID, ev.RecurrenceGroupID, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "tenant_id", ev.TenantID, "event_id", ev.ID, "err", err)
	}
}

func (s *Service) auditSeries(ctx context.Context, tenantID, groupID string, res CreateRecurringResult) {
	if s.audits == nil {
		return
	}
	actor, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	msg := fmt.Sprintf("series created: %d/%d occurrences", res.Created, res.Requested)
	if err := s.audits.LogMutation(ctx, audit.EventTypeSeries, tenantID, actor, role, res.FirstID, groupID, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "tenant_id", tenantID, "group_id", groupID, "err", err)
	}
}
