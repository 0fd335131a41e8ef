package timezone

import (
	"testing"
	"time"
)

func TestLocalDate_CrossesUTCBoundary(t *testing.T) {
	r := NewResolver("UTC")

	// 2026-02-14T14:30Z is already 2026-02-15 00:30 in UTC+10.
	at := time.Date(2026, 2, 14, 14, 30, 0, 0, time.UTC)

	if got := r.LocalDate("Australia/Brisbane", at); got != "2026-02-15" {
		t.Fatalf("expected 2026-02-15, got %q", got)
	}
	if got := r.LocalDate("UTC", at); got != "2026-02-14" {
		t.Fatalf("expected 2026-02-14, got %q", got)
	}
}

func TestLocation_FallsBackOnBadZone(t *testing.T) {
	r := NewResolver("Australia/Sydney")

	loc := r.Location("Not/AZone")
	if loc.String() != "Australia/Sydney" {
		t.Fatalf("expected default zone, got %q", loc.String())
	}
	if loc := r.Location(""); loc.String() != "Australia/Sydney" {
		t.Fatalf("expected default zone for empty input, got %q", loc.String())
	}
}

func TestNewResolver_BadDefaultDegradesToUTC(t *testing.T) {
	r := NewResolver("nope")
	if r.Location("").String() != "UTC" {
		t.Fatalf("expected UTC fallback, got %q", r.Location("").String())
	}
}

func TestQueryWindow_WidensAndRefilters(t *testing.T) {
	r := NewResolver("UTC")

	win, err := r.QueryWindow("Australia/Brisbane", "2026-02-15", "2026-02-15")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if win.QueryStart != "2026-02-14" || win.QueryEnd != "2026-02-16" {
		t.Fatalf("unexpected widened bounds: %q..%q", win.QueryStart, win.QueryEnd)
	}

	// The event at 2026-02-14T14:30Z lives on local date 2026-02-15 and must
	// survive the refilter even though its UTC date is outside the request.
	at := time.Date(2026, 2, 14, 14, 30, 0, 0, time.UTC)
	if !win.ContainsLocalDate(r.LocalDate("Australia/Brisbane", at)) {
		t.Fatalf("expected boundary event inside window")
	}
	if win.ContainsLocalDate("2026-02-14") || win.ContainsLocalDate("2026-02-16") {
		t.Fatalf("refilter must use the original range, not the widened one")
	}
}

func TestQueryWindow_RejectsBadInput(t *testing.T) {
	r := NewResolver("UTC")

	if _, err := r.QueryWindow("UTC", "15-02-2026", "2026-02-15"); err == nil {
		t.Fatalf("expected error for bad start date")
	}
	if _, err := r.QueryWindow("UTC", "2026-02-16", "2026-02-15"); err == nil {
		t.Fatalf("expected error for end before start")
	}
}

func TestTransplant_PreservesWallClock(t *testing.T) {
	r := NewResolver("UTC")

	// 09:30 local in Sydney.
	loc, _ := time.LoadLocation("Australia/Sydney")
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, loc)

	got, err := r.Transplant(at.UTC(), "2026-03-09", "Australia/Sydney")
	if err != nil {
		t.Fatalf("transplant: %v", err)
	}
	if got.In(loc).Format("2006-01-02 15:04") != "2026-03-09 09:30" {
		t.Fatalf("unexpected transplant result: %v", got.In(loc))
	}
}

func TestTransplant_AcrossDaylightSavingEnd(t *testing.T) {
	r := NewResolver("UTC")

	// 09:30 Saturday in Sydney daylight saving (UTC+11); clocks fall back
	// to UTC+10 on 2026-04-05.
	loc, _ := time.LoadLocation("Australia/Sydney")
	at := time.Date(2026, 4, 4, 9, 30, 0, 0, loc)

	got, err := r.Transplant(at.UTC(), "2026-04-06", "Australia/Sydney")
	if err != nil {
		t.Fatalf("transplant: %v", err)
	}
	if got.In(loc).Format("2006-01-02 15:04") != "2026-04-06 09:30" {
		t.Fatalf("wall clock must survive the offset change, got %v", got.In(loc))
	}
	if _, offset := got.In(loc).Zone(); offset != 10*3600 {
		t.Fatalf("expected standard-time offset +10h, got %d", offset)
	}
}

func TestGreetingPeriod(t *testing.T) {
	r := NewResolver("UTC")

	cases := []struct {
		hour int
		want string
	}{
		{6, "morning"},
		{13, "afternoon"},
		{21, "evening"},
	}
	for _, tc := range cases {
		at := time.Date(2026, 1, 1, tc.hour, 0, 0, 0, time.UTC)
		if got := r.GreetingPeriod("UTC", at); got != tc.want {
			t.Fatalf("hour %d: expected %q, got %q", tc.hour, tc.want, got)
		}
	}
}
