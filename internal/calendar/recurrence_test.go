package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestExpandDates_DailyCount(t *testing.T) {
	start := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	dates, err := ExpandDates(start, time.UTC, RecurrenceRule{Frequency: FreqDaily, Count: 3})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{"2026-02-14", "2026-02-15", "2026-02-16"}
	assertDates(t, dates, want)
}

func TestExpandDates_DailyInclusiveEndDate(t *testing.T) {
	start := time.Date(2026, 2, 14, 23, 30, 0, 0, time.UTC)
	dates, err := ExpandDates(start, time.UTC, RecurrenceRule{Frequency: FreqDaily, EndDate: "2026-02-16"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertDates(t, dates, []string{"2026-02-14", "2026-02-15", "2026-02-16"})
}

func TestExpandDates_WeeklyKeepsWeekday(t *testing.T) {
	loc := mustLoc(t, "Australia/Sydney")
	// A Monday morning in Sydney.
	start := time.Date(2026, 2, 16, 9, 30, 0, 0, loc)
	dates, err := ExpandDates(start, loc, RecurrenceRule{Frequency: FreqWeekly, Count: 4})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertDates(t, dates, []string{"2026-02-16", "2026-02-23", "2026-03-02", "2026-03-09"})

	for _, d := range dates {
		day, _ := time.ParseInLocation("2006-01-02", d, loc)
		if day.Weekday() != time.Monday {
			t.Fatalf("expected Monday, got %s for %s", day.Weekday(), d)
		}
	}
}

func TestExpandDates_MonthlyClampsShortMonths(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	dates, err := ExpandDates(start, time.UTC, RecurrenceRule{Frequency: FreqMonthly, Count: 4})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// 2026 is not a leap year; February clamps to the 28th and the series
	// still lands in every month.
	assertDates(t, dates, []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"})
}

func TestExpandDates_MonthlyLeapFebruary(t *testing.T) {
	start := time.Date(2027, 12, 31, 10, 0, 0, 0, time.UTC)
	dates, err := ExpandDates(start, time.UTC, RecurrenceRule{Frequency: FreqMonthly, Count: 3})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertDates(t, dates, []string{"2027-12-31", "2028-01-31", "2028-02-29"})
}

func TestExpandDates_MonthlyInterval(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	dates, err := ExpandDates(start, time.UTC, RecurrenceRule{Frequency: FreqMonthly, Interval: 3, Count: 3})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertDates(t, dates, []string{"2026-01-15", "2026-04-15", "2026-07-15"})
}

func TestExpandDates_CapsRunawayRules(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	dates, err := ExpandDates(start, time.UTC, RecurrenceRule{Frequency: FreqDaily, EndDate: "2028-12-31"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(dates) != 366 {
		t.Fatalf("expected occurrence cap of 366, got %d", len(dates))
	}
}

func TestRecurrenceRule_Validate(t *testing.T) {
	cases := []struct {
		name string
		rule RecurrenceRule
		ok   bool
	}{
		{"count only", RecurrenceRule{Frequency: FreqDaily, Count: 5}, true},
		{"end date only", RecurrenceRule{Frequency: FreqWeekly, EndDate: "2026-06-01"}, true},
		{"no termination", RecurrenceRule{Frequency: FreqDaily}, false},
		{"both terminations", RecurrenceRule{Frequency: FreqDaily, Count: 3, EndDate: "2026-06-01"}, false},
		{"unknown frequency", RecurrenceRule{Frequency: "yearly", Count: 3}, false},
		{"bad end date", RecurrenceRule{Frequency: FreqDaily, EndDate: "junk"}, false},
	}
	for _, c := range cases {
		err := c.rule.Validate()
		if c.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok {
			if err == nil {
				t.Fatalf("%s: expected error", c.name)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%s: expected ErrValidation, got %v", c.name, err)
			}
		}
	}
}

func assertDates(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("date %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
}
