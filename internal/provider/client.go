package provider

import (
	"context"
	"strings"
	"time"

	"cally-platform/internal/calendar"
)

// Client is the provider-agnostic adapter interface.
//
// Rules:
// - No provider REST calls outside provider adapters.
// - Every call takes the tenant's Config and returns it back, possibly with
//   refreshed tokens; the caller persists the returned Config.
// - Returned items use the canonical read model (Z-suffixed UTC strings).
type Client interface {
	Name() string

	ListEvents(ctx context.Context, cfg Config, utcStart, utcEnd time.Time) ([]calendar.Item, Config, error)

	// CreateEvent mirrors a native appointment and returns the provider's
	// event id for linkage.
	CreateEvent(ctx context.Context, cfg Config, ev calendar.CalendarEvent) (string, Config, error)

	// UpdateEvent pushes the current state of a linked appointment.
	UpdateEvent(ctx context.Context, cfg Config, ev calendar.CalendarEvent, providerEventID string) (Config, error)
}

const untitledEvent = "(No title)"

// normalizeInstant coerces a provider timestamp into the canonical
// Z-suffixed UTC form. Providers variously emit offsets, fractional
// seconds without a zone, or bare dates for all-day events.
func normalizeInstant(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) == len("2006-01-02") {
		return s + "T00:00:00Z"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return calendar.FormatInstant(t)
	}
	// Graph-style local timestamp with no zone designator; the request
	// pinned the response zone to UTC, so assert it.
	if t, err := time.Parse("2006-01-02T15:04:05", trimFraction(s)); err == nil {
		return calendar.FormatInstant(t.UTC())
	}
	return s
}

func trimFraction(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}
