package calendar

import (
	"errors"
	"time"
)

var (
	// ErrValidation marks malformed or missing caller input. Surfaced
	// directly, never retried.
	ErrValidation = errors.New("calendar: validation failed")
	// ErrNotFound marks a missing event for the given tenant-scoped key.
	ErrNotFound = errors.New("calendar: not found")
)

// EventStatus is the closed set of appointment states. Every consumption
// site (display color, filtering, refund eligibility) switches on it.
type EventStatus string

const (
	StatusPending        EventStatus = "pending"
	StatusPendingPayment EventStatus = "pending_payment"
	StatusScheduled      EventStatus = "scheduled"
	StatusCompleted      EventStatus = "completed"
	StatusCancelled      EventStatus = "cancelled"
	StatusNoShow         EventStatus = "no_show"
)

func (s EventStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPendingPayment, StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// needsAttentionColor overrides any custom color for appointments awaiting
// tenant action.
const needsAttentionColor = "#f59e0b"

// DisplayColor resolves the calendar accent for a status, given the event's
// custom color. Pending states always win over custom colors.
func (s EventStatus) DisplayColor(custom string) string {
	switch s {
	case StatusPending, StatusPendingPayment:
		return needsAttentionColor
	case StatusCancelled:
		return "#9ca3af"
	default:
		if custom != "" {
			return custom
		}
		return "#3b82f6"
	}
}

// CalendarEvent is one bookable calendar entry.
//
// Key invariants:
// - Unique per (tenant_id, date, id); date is the local-timezone calendar
//   date of StartTime and only the mutation service may move it.
// - EndTime is strictly after StartTime.
// - All occurrences of one RecurrenceGroupID share time-of-day and duration;
//   only the calendar date differs.
// - Rule is present only on the first occurrence of a series, so "series
//   definition" and "series member" are distinguishable in O(1).
type CalendarEvent struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Date            string    `json:"date" db:"date"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	EndTime         time.Time `json:"end_time" db:"end_time"`
	DurationMinutes int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	IsAllDay        bool      `json:"is_all_day" db:"is_all_day"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description,omitempty" db:"description"`
	Location    string `json:"location,omitempty" db:"location"`
	Notes       string `json:"notes,omitempty" db:"notes"`
	Color       string `json:"color,omitempty" db:"color"`

	Status EventStatus `json:"status" db:"status"`

	VisitorName  string `json:"visitor_name,omitempty" db:"visitor_name"`
	VisitorEmail string `json:"visitor_email,omitempty" db:"visitor_email"`

	// Recurrence linkage. Rule is nil for single events and for series
	// members past the first occurrence.
	RecurrenceGroupID string          `json:"recurrence_group_id,omitempty" db:"recurrence_group_id"`
	Rule              *RecurrenceRule `json:"recurrence_rule,omitempty" db:"recurrence_rule"`

	// Provider linkage, set once a push to that provider succeeded. These
	// ids are the merge de-duplication keys.
	GoogleCalendarEventID  string `json:"google_calendar_event_id,omitempty" db:"google_calendar_event_id"`
	OutlookCalendarEventID string `json:"outlook_calendar_event_id,omitempty" db:"outlook_calendar_event_id"`

	// VideoRoomID is mutually exclusive with recurrence; a single shared
	// room across N occurrences would be wrong, rejected at creation.
	VideoRoomID string `json:"video_room_id,omitempty" db:"video_room_id"`

	PaymentIntentID string `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	RefundID        string `json:"refund_id,omitempty" db:"refund_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Linked reports whether the event mirrors an event at the named provider.
func (e CalendarEvent) Linked(provider string) bool {
	switch provider {
	case SourceGoogle:
		return e.GoogleCalendarEventID != ""
	case SourceOutlook:
		return e.OutlookCalendarEventID != ""
	default:
		return false
	}
}

// EventUpdate enumerates every mutable field once; nil means "leave
// untouched". Partial-update semantics, never whole-record replace.
type EventUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Color       *string `json:"color,omitempty"`

	Status *EventStatus `json:"status,omitempty"`

	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`

	GoogleCalendarEventID  *string `json:"google_calendar_event_id,omitempty"`
	OutlookCalendarEventID *string `json:"outlook_calendar_event_id,omitempty"`
}

// Item source tags.
const (
	SourceNative  = "native"
	SourceGoogle  = "google"
	SourceOutlook = "outlook"
)

// Item is the derived read-model projection shown to callers; it unifies
// native, Google and Outlook events and is never persisted.
//
// Start and End are Z-suffixed UTC ISO-8601 strings. That representation is
// a hard invariant: the merge engine sorts items lexicographically by Start.
type Item struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"all_day"`
	Color  string `json:"color"`

	Source string `json:"source"`

	// ProviderEventID is the provider-native id for provider items.
	ProviderEventID string `json:"provider_event_id,omitempty"`

	// Provider ids carried by native items, used for de-duplication.
	GoogleEventID  string `json:"google_event_id,omitempty"`
	OutlookEventID string `json:"outlook_event_id,omitempty"`

	Location    string      `json:"location,omitempty"`
	Description string      `json:"description,omitempty"`
	Status      EventStatus `json:"status,omitempty"`
}

// FormatInstant renders an instant in the canonical Z-suffixed UTC form that
// keeps lexicographic ordering equal to chronological ordering.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NativeItem projects a stored event into the read model, applying the
// status-derived color override.
func NativeItem(e CalendarEvent) Item {
	return Item{
		ID:             e.ID,
		Title:          e.Title,
		Start:          FormatInstant(e.StartTime),
		End:            FormatInstant(e.EndTime),
		AllDay:         e.IsAllDay,
		Color:          e.Status.DisplayColor(e.Color),
		Source:         SourceNative,
		GoogleEventID:  e.GoogleCalendarEventID,
		OutlookEventID: e.OutlookCalendarEventID,
		Location:       e.Location,
		Description:    e.Description,
		Status:         e.Status,
	}
}
