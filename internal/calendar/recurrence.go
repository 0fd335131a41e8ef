package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"cally-platform/internal/timezone"
)

// Frequency steps are calendar-semantic, never fixed-duration arithmetic:
// "every month" lands on the same day-of-month, not on "+30 days".
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// maxOccurrences caps a single expansion so a bad rule cannot produce an
// unbounded series of store writes.
const maxOccurrences = 366

// RecurrenceRule is a pure value object consumed by ExpandDates and never
// mutated after creation. Exactly one termination condition is required:
// an occurrence count or a local end date.
type RecurrenceRule struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval,omitempty"`
	Count     int       `json:"count,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
}

func (r RecurrenceRule) Validate() error {
	switch r.Frequency {
	case FreqDaily, FreqWeekly, FreqMonthly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrValidation, r.Frequency)
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrValidation)
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: count must be positive", ErrValidation)
	}
	if r.Count == 0 && r.EndDate == "" {
		return fmt.Errorf("%w: recurrence needs a count or an end date", ErrValidation)
	}
	if r.Count > 0 && r.EndDate != "" {
		return fmt.Errorf("%w: count and end date are mutually exclusive", ErrValidation)
	}
	if r.EndDate != "" {
		if _, err := time.Parse(timezone.DateLayout, r.EndDate); err != nil {
			return fmt.Errorf("%w: bad end date %q", ErrValidation, r.EndDate)
		}
	}
	return nil
}

func (r RecurrenceRule) interval() int {
	if r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

// ExpandDates expands a rule into the ordered local calendar dates of each
// occurrence, starting from the date of start in loc. Pure function of its
// inputs; restartable.
//
// The caller materializes one event per date, transplanting the original
// time-of-day onto each new date and re-applying the original duration in
// milliseconds, which keeps apparent length stable across DST shifts.
func ExpandDates(start time.Time, loc *time.Location, rule RecurrenceRule) ([]string, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	if rule.Frequency == FreqMonthly {
		return expandMonthly(start.In(loc), loc, rule)
	}

	opt := rrule.ROption{
		Dtstart:  start.In(loc),
		Interval: rule.interval(),
	}
	switch rule.Frequency {
	case FreqDaily:
		opt.Freq = rrule.DAILY
	case FreqWeekly:
		opt.Freq = rrule.WEEKLY
	}
	if rule.Count > 0 {
		opt.Count = rule.Count
	} else {
		until, err := time.ParseInLocation(timezone.DateLayout, rule.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end date %q", ErrValidation, rule.EndDate)
		}
		// Inclusive end date: anything before the following midnight counts.
		opt.Until = until.AddDate(0, 0, 1).Add(-time.Second)
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	times := rr.All()
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}

	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.In(loc).Format(timezone.DateLayout))
	}
	return out, nil
}

// expandMonthly steps by calendar months with the day-of-month clamped to
// the last valid day of shorter months. RRULE BYMONTHDAY semantics would
// skip those months entirely; clamping is the documented policy here, so a
// series started on the 31st still lands in February (on the 28th or 29th).
func expandMonthly(base time.Time, loc *time.Location, rule RecurrenceRule) ([]string, error) {
	var until time.Time
	if rule.EndDate != "" {
		end, err := time.ParseInLocation(timezone.DateLayout, rule.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end date %q", ErrValidation, rule.EndDate)
		}
		until = end
	}

	year, month, day := base.Date()
	step := rule.interval()

	out := make([]string, 0, 8)
	for i := 0; len(out) < maxOccurrences; i++ {
		y, m := year, int(month)+i*step
		y += (m - 1) / 12
		m = (m-1)%12 + 1

		d := day
		if last := daysInMonth(y, time.Month(m)); d > last {
			d = last
		}
		occ := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)

		if rule.Count > 0 && len(out) >= rule.Count {
			break
		}
		if !until.IsZero() && occ.After(until) {
			break
		}
		out = append(out, occ.Format(timezone.DateLayout))
	}
	return out, nil
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
