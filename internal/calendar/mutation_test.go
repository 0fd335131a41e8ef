package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"cally-platform/internal/audit"
	"cally-platform/internal/notify"
	"cally-platform/internal/payment"
	"cally-platform/internal/timezone"
)

func seed(t *testing.T, repo Repository, ev CalendarEvent) CalendarEvent {
	t.Helper()
	if err := repo.Create(context.Background(), ev); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ev
}

func TestUpdate_RescheduleRecomputesEndAndDate(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo)

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime:       time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2026, 2, 14, 10, 45, 0, 0, time.UTC),
		DurationMinutes: 45,
		Title:           "Consult", Status: StatusScheduled,
	})

	// Move the start to the next day; no explicit end.
	newStart := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	got, err := svc.Update(context.Background(), "t1", "UTC", "2026-02-14", "ev1", EventUpdate{StartTime: &newStart})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.EndTime.Equal(newStart.Add(45 * time.Minute)) {
		t.Fatalf("expected end recomputed from 45-minute duration, got %v", got.EndTime)
	}
	if got.Date != "2026-02-15" {
		t.Fatalf("expected date to follow the new start, got %s", got.Date)
	}

	if _, err := repo.GetByID(context.Background(), "t1", "2026-02-15", "ev1"); err != nil {
		t.Fatalf("expected event reachable under new date: %v", err)
	}
}

func TestUpdate_PartialLeavesOtherFieldsAlone(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo)

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Consult", Location: "Room 2", Status: StatusScheduled,
	})

	title := "Renamed"
	got, err := svc.Update(context.Background(), "t1", "UTC", "2026-02-14", "ev1", EventUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Renamed" || got.Location != "Room 2" {
		t.Fatalf("partial update touched wrong fields: %+v", got)
	}
	if got.Date != "2026-02-14" {
		t.Fatalf("date must not move without a start change, got %s", got.Date)
	}
}

func TestUpdate_IDOnlyLookupFallback(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo)

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Consult", Status: StatusScheduled,
	})

	title := "Found anyway"
	got, err := svc.Update(context.Background(), "t1", "UTC", "", "ev1", EventUpdate{Title: &title})
	if err != nil {
		t.Fatalf("id-only update: %v", err)
	}
	if got.Title != "Found anyway" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestUpdate_UnknownEventAndBadStatus(t *testing.T) {
	svc := newTestService(NewMemoryRepo())

	title := "x"
	if _, err := svc.Update(context.Background(), "t1", "UTC", "2026-02-14", "missing", EventUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	repo := NewMemoryRepo()
	svc = newTestService(repo)
	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Consult", Status: StatusScheduled,
	})
	bad := EventStatus("weird")
	if _, err := svc.Update(context.Background(), "t1", "UTC", "2026-02-14", "ev1", EventUpdate{Status: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func cancellationService(repo Repository, pay payment.Processor, sender notify.Sender, auditRepo audit.Repository) *Service {
	var audits *audit.Service
	if auditRepo != nil {
		audits = audit.NewService(auditRepo)
	}
	return NewService(ServiceDeps{
		Repo:     repo,
		Resolver: timezone.NewResolver("UTC"),
		Payments: pay,
		Notifier: sender,
		Audit:    audits,
	})
}

func TestCancel_RefundsAndNotifies(t *testing.T) {
	repo := NewMemoryRepo()
	pay := payment.NewFake()
	pay.Intents["pi_1"] = payment.Intent{ID: "pi_1", AmountMinor: 5000, Currency: "aud", Status: "succeeded"}
	sender := &notify.Fake{}
	auditRepo := audit.NewMemoryRepo()
	svc := cancellationService(repo, pay, sender, auditRepo)

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Paid consult", Status: StatusScheduled,
		VisitorName: "Dana", VisitorEmail: "dana@example.com",
		PaymentIntentID: "pi_1",
	})

	got, err := svc.Cancel(context.Background(), "t1", "UTC", "2026-02-14", "ev1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	if len(pay.RefundCalls) != 1 || pay.RefundCalls[0] != "pi_1" {
		t.Fatalf("expected one refund call, got %v", pay.RefundCalls)
	}

	stored, _ := repo.GetByID(context.Background(), "t1", "2026-02-14", "ev1")
	if stored.RefundID != "re_pi_1" {
		t.Fatalf("expected refund id stored, got %q", stored.RefundID)
	}

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one cancellation notice, got %d", len(sent))
	}
	if sent[0].VisitorEmail != "dana@example.com" || sent[0].RefundAmountMinor != 5000 {
		t.Fatalf("unexpected notice: %+v", sent[0])
	}

	logged := auditRepo.All()
	if len(logged) != 1 || logged[0].Type != audit.EventTypeCancelled {
		t.Fatalf("expected cancellation audit event, got %+v", logged)
	}
}

func TestRecordRefund_UnknownEvent(t *testing.T) {
	repo := NewMemoryRepo()
	err := repo.RecordRefund(context.Background(), "t1", "missing", "re_1", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancel_SucceedsWhenRefundFails(t *testing.T) {
	repo := NewMemoryRepo()
	pay := payment.NewFake()
	pay.FailRefunds = payment.ErrUnavailable
	sender := &notify.Fake{}
	svc := cancellationService(repo, pay, sender, nil)

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Paid consult", Status: StatusScheduled,
		VisitorEmail:    "dana@example.com",
		PaymentIntentID: "pi_1",
	})

	got, err := svc.Cancel(context.Background(), "t1", "UTC", "2026-02-14", "ev1")
	if err != nil {
		t.Fatalf("refund outage must not block cancellation: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	stored, _ := repo.GetByID(context.Background(), "t1", "2026-02-14", "ev1")
	if stored.RefundID != "" {
		t.Fatalf("expected no refund id after failed refund, got %q", stored.RefundID)
	}
	// The visitor still hears about the cancellation.
	if len(sender.Sent()) != 1 {
		t.Fatalf("expected cancellation notice despite refund failure")
	}
}

func TestCancel_NoPaymentNoRefundCall(t *testing.T) {
	repo := NewMemoryRepo()
	pay := payment.NewFake()
	svc := cancellationService(repo, pay, nil, nil)

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Free consult", Status: StatusScheduled,
	})

	if _, err := svc.Cancel(context.Background(), "t1", "UTC", "2026-02-14", "ev1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(pay.RefundCalls) != 0 {
		t.Fatalf("expected no refund call for unpaid event, got %v", pay.RefundCalls)
	}
}

func TestUpdate_EnqueuesSyncJob(t *testing.T) {
	repo := NewMemoryRepo()
	queue := &captureQueue{}
	svc := NewService(ServiceDeps{Repo: repo, Resolver: timezone.NewResolver("UTC"), Queue: queue})

	seed(t, repo, CalendarEvent{
		ID: "ev1", TenantID: "t1", Date: "2026-02-14",
		StartTime: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC),
		Title:     "Consult", Status: StatusScheduled,
	})

	title := "Renamed"
	if _, err := svc.Update(context.Background(), "t1", "UTC", "2026-02-14", "ev1", EventUpdate{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].Op != SyncOpUpdate || queue.jobs[0].EventID != "ev1" {
		t.Fatalf("expected one update sync job, got %+v", queue.jobs)
	}
}
