package calendar

import (
	"testing"
	"time"
)

func TestMerge_DeduplicatesLinkedProviderEvents(t *testing.T) {
	native := []Item{
		{ID: "ev1", Title: "Consult", Start: "2026-02-14T10:00:00Z", Source: SourceNative, GoogleEventID: "g123"},
	}
	google := []Item{
		{ID: "google-g123", Title: "Consult", Start: "2026-02-14T10:00:00Z", Source: SourceGoogle, ProviderEventID: "g123"},
		{ID: "google-g456", Title: "Standup", Start: "2026-02-14T09:00:00Z", Source: SourceGoogle, ProviderEventID: "g456"},
	}

	merged := Merge(native, google)
	if len(merged) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d: %v", len(merged), merged)
	}
	for _, it := range merged {
		if it.ProviderEventID == "g123" {
			t.Fatalf("linked provider event should have been dropped: %+v", it)
		}
	}
	// Native item survives for the linked event.
	if merged[1].ID != "ev1" {
		t.Fatalf("expected native item to win, got %+v", merged[1])
	}
}

func TestMerge_OrdersByStartAcrossSources(t *testing.T) {
	native := []Item{
		{ID: "n1", Start: "2026-02-14T12:00:00Z", Source: SourceNative},
	}
	google := []Item{
		{ID: "g1", Start: "2026-02-14T08:00:00Z", Source: SourceGoogle, ProviderEventID: "g1"},
	}
	outlook := []Item{
		{ID: "o1", Start: "2026-02-14T10:00:00Z", Source: SourceOutlook, ProviderEventID: "o1"},
	}

	merged := Merge(native, google, outlook)
	want := []string{"g1", "o1", "n1"}
	for i, id := range want {
		if merged[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, merged[i].ID)
		}
	}
}

func TestMerge_StableForEqualStarts(t *testing.T) {
	native := []Item{
		{ID: "n1", Start: "2026-02-14T10:00:00Z", Source: SourceNative},
		{ID: "n2", Start: "2026-02-14T10:00:00Z", Source: SourceNative},
	}
	google := []Item{
		{ID: "g1", Start: "2026-02-14T10:00:00Z", Source: SourceGoogle, ProviderEventID: "g1"},
	}

	first := Merge(native, google)
	second := Merge(native, google)
	if len(first) != 3 {
		t.Fatalf("expected 3 items, got %d", len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("merge order is not deterministic at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	// Equal starts keep input order: native items first, then provider.
	if first[0].ID != "n1" || first[1].ID != "n2" || first[2].ID != "g1" {
		t.Fatalf("unexpected order: %v", []string{first[0].ID, first[1].ID, first[2].ID})
	}
}

func TestNativeItem_StatusColorOverride(t *testing.T) {
	base := CalendarEvent{
		ID:        "ev1",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Color:     "#112233",
	}

	base.Status = StatusScheduled
	if got := NativeItem(base).Color; got != "#112233" {
		t.Fatalf("scheduled should keep custom color, got %q", got)
	}

	base.Status = StatusPendingPayment
	if got := NativeItem(base).Color; got != "#f59e0b" {
		t.Fatalf("pending payment must use attention color, got %q", got)
	}

	base.Status = StatusCancelled
	if got := NativeItem(base).Color; got != "#9ca3af" {
		t.Fatalf("cancelled color mismatch: %q", got)
	}
}

func TestFormatInstant_IsLexicographicallySortable(t *testing.T) {
	earlier := FormatInstant(time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC))
	later := FormatInstant(time.Date(2026, 2, 14, 10, 0, 0, 0, time.FixedZone("AEST", 10*3600)))
	// 10:00+10:00 is 00:00Z, which precedes 09:00Z.
	if later >= earlier {
		t.Fatalf("expected %q < %q", later, earlier)
	}
}
