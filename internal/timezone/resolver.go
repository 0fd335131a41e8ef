package timezone

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical local calendar date format used as the event
// store partition key.
const DateLayout = "2006-01-02"

var ErrBadDate = errors.New("timezone: invalid date")

// Resolver converts between a tenant's local calendar dates and the UTC
// instants used by the event store.
//
// Rules:
// - A bad tenant timezone string must never make scheduling unavailable.
//   Location() falls back to the configured default zone instead of failing.
// - Date-range reads must use the widen-then-refilter protocol: query the
//   store with Window.QueryStart/QueryEnd, then keep only events whose
//   LocalDate(tz, startTime) falls inside Window.LocalStart/LocalEnd.
type Resolver struct {
	def *time.Location
}

// NewResolver builds a resolver with the given default IANA zone.
// An unrecognized default degrades to UTC.
func NewResolver(defaultTZ string) *Resolver {
	loc, err := time.LoadLocation(defaultTZ)
	if err != nil || loc == nil {
		loc = time.UTC
	}
	return &Resolver{def: loc}
}

// Location resolves a tenant timezone string, falling back to the default
// zone when the string is empty or unrecognized.
func (r *Resolver) Location(tz string) *time.Location {
	if tz == "" {
		return r.def
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || loc == nil {
		return r.def
	}
	return loc
}

// LocalDate returns the tenant-local calendar date of a UTC instant.
func (r *Resolver) LocalDate(tz string, at time.Time) string {
	return at.In(r.Location(tz)).Format(DateLayout)
}

// Window describes one date-range read.
//
// QueryStart/QueryEnd are the widened partition-key bounds handed to the
// event store. LocalStart/LocalEnd are the originally requested local dates
// used for the mandatory refilter. UTCStart/UTCEnd bound the same local range
// as instants, for provider fetches.
type Window struct {
	QueryStart string
	QueryEnd   string

	LocalStart string
	LocalEnd   string

	UTCStart time.Time
	UTCEnd   time.Time
}

// ContainsLocalDate reports whether a local date falls inside the originally
// requested range. Dates in DateLayout compare correctly as strings.
func (w Window) ContainsLocalDate(d string) bool {
	return d >= w.LocalStart && d <= w.LocalEnd
}

// QueryWindow computes the store query bounds for a local date range.
//
// UTC can trail or lead local time by up to 14 hours, so one local date can
// span two adjacent UTC dates. The partition-key bounds are therefore widened
// by one day on each side; callers must refilter with ContainsLocalDate or
// events will appear one day off for tenants on non-UTC-aligned zones.
func (r *Resolver) QueryWindow(tz, startDate, endDate string) (Window, error) {
	loc := r.Location(tz)

	start, err := time.ParseInLocation(DateLayout, startDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrBadDate, startDate)
	}
	end, err := time.ParseInLocation(DateLayout, endDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrBadDate, endDate)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: end %q before start %q", ErrBadDate, endDate, startDate)
	}

	return Window{
		QueryStart: start.AddDate(0, 0, -1).Format(DateLayout),
		QueryEnd:   end.AddDate(0, 0, 1).Format(DateLayout),
		LocalStart: startDate,
		LocalEnd:   endDate,
		UTCStart:   start.UTC(),
		UTCEnd:     end.AddDate(0, 0, 1).UTC(),
	}, nil
}

// Transplant moves an instant onto a new local calendar date, preserving the
// original wall-clock time-of-day in the tenant's zone. Callers preserve the
// original duration separately so DST shifts cannot change apparent length.
func (r *Resolver) Transplant(at time.Time, localDate, tz string) (time.Time, error) {
	loc := r.Location(tz)

	d, err := time.ParseInLocation(DateLayout, localDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, localDate)
	}

	lt := at.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), loc), nil
}

// FormatTimeOfDay renders an instant as a tenant-local clock time.
func (r *Resolver) FormatTimeOfDay(tz string, at time.Time) string {
	return at.In(r.Location(tz)).Format("15:04")
}

// GreetingPeriod returns the tenant-local part of day, used by assistant
// greetings. Shares the timezone fallback with every other formatter.
func (r *Resolver) GreetingPeriod(tz string, at time.Time) string {
	h := at.In(r.Location(tz)).Hour()
	switch {
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
