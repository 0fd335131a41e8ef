package syncqueue

import (
	"context"
	"testing"
	"time"

	"cally-platform/internal/calendar"
	"cally-platform/internal/provider"
)

type fakePusher struct {
	name string

	createID  string
	createErr error
	creates   []string

	updates []string
}

func (f *fakePusher) Name() string { return f.name }

func (f *fakePusher) PushCreate(ctx context.Context, ev calendar.CalendarEvent) (string, error) {
	f.creates = append(f.creates, ev.ID)
	return f.createID, f.createErr
}

func (f *fakePusher) PushUpdate(ctx context.Context, ev calendar.CalendarEvent, providerEventID string) error {
	f.updates = append(f.updates, providerEventID)
	return nil
}

func seedEvent(t *testing.T, repo *calendar.MemoryRepo, ev calendar.CalendarEvent) {
	t.Helper()
	if err := repo.Create(context.Background(), ev); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestWorker_CreateLinksProviderID(t *testing.T) {
	repo := calendar.NewMemoryRepo()
	seedEvent(t, repo, calendar.CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		Title: "Consult", Status: calendar.StatusScheduled,
	})

	pusher := &fakePusher{name: calendar.SourceGoogle, createID: "g-abc"}
	w := NewWorker(WorkerDeps{Queue: NewMemoryQueue(), Repo: repo, Pushers: []Pusher{pusher}})

	w.process(context.Background(), calendar.SyncJob{
		TenantID: "t1", Date: "2026-02-14", EventID: "ev1", Op: calendar.SyncOpCreate,
	})

	got, err := repo.GetByID(context.Background(), "t1", "2026-02-14", "ev1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GoogleCalendarEventID != "g-abc" {
		t.Fatalf("expected provider link stored, got %q", got.GoogleCalendarEventID)
	}
	if len(pusher.creates) != 1 {
		t.Fatalf("expected one create push, got %d", len(pusher.creates))
	}
}

func TestWorker_RedeliveredCreateBecomesUpdate(t *testing.T) {
	repo := calendar.NewMemoryRepo()
	seedEvent(t, repo, calendar.CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		Title: "Consult", Status: calendar.StatusScheduled,
		GoogleCalendarEventID: "g-abc",
	})

	pusher := &fakePusher{name: calendar.SourceGoogle, createID: "g-new"}
	w := NewWorker(WorkerDeps{Queue: NewMemoryQueue(), Repo: repo, Pushers: []Pusher{pusher}})

	w.process(context.Background(), calendar.SyncJob{
		TenantID: "t1", Date: "2026-02-14", EventID: "ev1", Op: calendar.SyncOpCreate,
	})

	if len(pusher.creates) != 0 {
		t.Fatalf("expected no create push for linked event")
	}
	if len(pusher.updates) != 1 || pusher.updates[0] != "g-abc" {
		t.Fatalf("expected update push against existing link, got %v", pusher.updates)
	}
}

func TestWorker_NotConnectedIsQuietlySkipped(t *testing.T) {
	repo := calendar.NewMemoryRepo()
	seedEvent(t, repo, calendar.CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		Title: "Consult", Status: calendar.StatusScheduled,
	})

	pusher := &fakePusher{name: calendar.SourceOutlook, createErr: provider.ErrNotConnected}
	w := NewWorker(WorkerDeps{Queue: NewMemoryQueue(), Repo: repo, Pushers: []Pusher{pusher}})

	w.process(context.Background(), calendar.SyncJob{
		TenantID: "t1", Date: "2026-02-14", EventID: "ev1", Op: calendar.SyncOpCreate,
	})

	got, _ := repo.GetByID(context.Background(), "t1", "2026-02-14", "ev1")
	if got.OutlookCalendarEventID != "" {
		t.Fatalf("expected no link for unconnected provider")
	}
}

func TestWorker_StaleDateFallsBackToIDScan(t *testing.T) {
	repo := calendar.NewMemoryRepo()
	seedEvent(t, repo, calendar.CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-15",
		StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
		Title: "Moved", Status: calendar.StatusScheduled,
	})

	pusher := &fakePusher{name: calendar.SourceGoogle, createID: "g-abc"}
	w := NewWorker(WorkerDeps{Queue: NewMemoryQueue(), Repo: repo, Pushers: []Pusher{pusher}})

	// Job carries the pre-reschedule date.
	w.process(context.Background(), calendar.SyncJob{
		TenantID: "t1", Date: "2026-02-14", EventID: "ev1", Op: calendar.SyncOpCreate,
	})

	if len(pusher.creates) != 1 {
		t.Fatalf("expected push despite stale job date, got %d", len(pusher.creates))
	}
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	_ = q.EnqueueSync(ctx, calendar.SyncJob{EventID: "a"})
	_ = q.EnqueueSync(ctx, calendar.SyncJob{EventID: "b"})

	first, err := q.Dequeue(ctx, 0)
	if err != nil || first.EventID != "a" {
		t.Fatalf("expected a first, got %+v err %v", first, err)
	}
	second, _ := q.Dequeue(ctx, 0)
	if second.EventID != "b" {
		t.Fatalf("expected b second, got %+v", second)
	}
	if _, err := q.Dequeue(ctx, 0); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestMemoryQueue_DequeueBlocksUntilJobArrives(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = q.EnqueueSync(ctx, calendar.SyncJob{EventID: "late"})
	}()

	began := time.Now()
	job, err := q.Dequeue(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("expected job within the wait window, got %v", err)
	}
	if job.EventID != "late" {
		t.Fatalf("expected late job, got %+v", job)
	}
	if time.Since(began) >= 2*time.Second {
		t.Fatalf("dequeue did not return as soon as the job arrived")
	}
}

func TestMemoryQueue_DequeueTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue()

	began := time.Now()
	if _, err := q.Dequeue(context.Background(), 40*time.Millisecond); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty after the wait window, got %v", err)
	}
	if time.Since(began) < 40*time.Millisecond {
		t.Fatalf("dequeue returned before the wait window elapsed")
	}
}
