package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"cally-platform/internal/calendar"
	"cally-platform/internal/provider"
	"cally-platform/pkg/utils"
)

// Pusher mirrors native appointments to one external provider.
// provider.Source satisfies it.
type Pusher interface {
	Name() string
	PushCreate(ctx context.Context, ev calendar.CalendarEvent) (string, error)
	PushUpdate(ctx context.Context, ev calendar.CalendarEvent, providerEventID string) error
}

// WorkerDeps wires one outbox consumer.
type WorkerDeps struct {
	Queue   Queue
	Repo    calendar.Repository
	Pushers []Pusher
	Log     *slog.Logger

	// Redis enables the per-tenant push concurrency cap. Nil disables it,
	// acceptable for single-process local runs.
	Redis    *redis.Client
	CapLimit int
	CapTTL   time.Duration
}

// Worker drains the sync outbox and pushes appointments to providers.
// Native state is already persisted when a job exists; every push failure
// is log-and-drop, the native store stays authoritative.
type Worker struct {
	queue   Queue
	repo    calendar.Repository
	pushers []Pusher
	log     *slog.Logger

	rdb      *redis.Client
	capLimit int
	capTTL   time.Duration

	pollTimeout time.Duration
}

func NewWorker(d WorkerDeps) *Worker {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	capLimit := d.CapLimit
	if capLimit <= 0 {
		capLimit = 4
	}
	capTTL := d.CapTTL
	if capTTL <= 0 {
		capTTL = 30 * time.Second
	}
	return &Worker{
		queue:       d.Queue,
		repo:        d.Repo,
		pushers:     d.Pushers,
		log:         log,
		rdb:         d.Redis,
		capLimit:    capLimit,
		capTTL:      capTTL,
		pollTimeout: 5 * time.Second,
	}
}

// Run consumes jobs until ctx is cancelled. Start one goroutine per
// configured worker.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("sync dequeue failed", "err", err)
			time.Sleep(time.Second)
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job calendar.SyncJob) {
	if ok, release := w.acquireCap(ctx, job.TenantID); !ok {
		// Tenant is at its push cap; put the job back for a later pass.
		if err := w.queue.EnqueueSync(ctx, job); err != nil {
			w.log.Warn("requeue at cap failed", "tenant_id", job.TenantID, "event_id", job.EventID, "err", err)
		}
		return
	} else {
		defer release()
	}

	ev, err := w.loadEvent(ctx, job)
	if err != nil {
		w.log.Warn("sync job dropped, event unavailable",
			"tenant_id", job.TenantID, "event_id", job.EventID, "op", string(job.Op), "err", err)
		return
	}

	for _, p := range w.pushers {
		w.pushOne(ctx, p, &ev, job.Op)
	}
}

func (w *Worker) loadEvent(ctx context.Context, job calendar.SyncJob) (calendar.CalendarEvent, error) {
	if job.Date != "" {
		ev, err := w.repo.GetByID(ctx, job.TenantID, job.Date, job.EventID)
		if err == nil {
			return ev, nil
		}
		if !errors.Is(err, calendar.ErrNotFound) {
			return calendar.CalendarEvent{}, err
		}
		// The event may have been rescheduled across a date boundary
		// between enqueue and consume.
	}
	return w.repo.GetByIDOnly(ctx, job.TenantID, job.EventID)
}

func (w *Worker) pushOne(ctx context.Context, p Pusher, ev *calendar.CalendarEvent, op calendar.SyncOp) {
	name := p.Name()
	linkedID := providerEventID(*ev, name)

	switch {
	case linkedID != "":
		// Already mirrored; creates degrade to updates so re-delivered
		// jobs stay idempotent.
		err := p.PushUpdate(ctx, *ev, linkedID)
		if errors.Is(err, provider.ErrNotConnected) {
			return
		}
		if err != nil {
			w.log.Warn("provider update push failed",
				"provider", name, "tenant_id", ev.TenantID, "event_id", ev.ID, "err", err)
		}

	case op == calendar.SyncOpCreate:
		providerID, err := p.PushCreate(ctx, *ev)
		if errors.Is(err, provider.ErrNotConnected) {
			return
		}
		if err != nil {
			w.log.Warn("provider create push failed",
				"provider", name, "tenant_id", ev.TenantID, "event_id", ev.ID, "err", err)
			return
		}
		setProviderEventID(ev, name, providerID)
		ev.UpdatedAt = time.Now().UTC()
		if err := w.repo.Update(ctx, *ev); err != nil {
			w.log.Warn("storing provider link failed",
				"provider", name, "tenant_id", ev.TenantID, "event_id", ev.ID, "err", err)
		}
	}
	// Update op with no linkage: nothing to do, the event was never
	// mirrored to this provider.
}

func (w *Worker) acquireCap(ctx context.Context, tenantID string) (bool, func()) {
	if w.rdb == nil {
		return true, func() {}
	}
	key := fmt.Sprintf("sync:cap:%s", tenantID)
	ok, err := utils.AcquireConcurrencyCap(ctx, w.rdb, key, w.capLimit, w.capTTL)
	if err != nil {
		w.log.Warn("cap acquire failed, proceeding uncapped", "tenant_id", tenantID, "err", err)
		return true, func() {}
	}
	if !ok {
		return false, nil
	}
	return true, func() {
		if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), w.rdb, key); err != nil {
			w.log.Warn("cap release failed", "tenant_id", tenantID, "err", err)
		}
	}
}

func providerEventID(ev calendar.CalendarEvent, name string) string {
	switch name {
	case calendar.SourceGoogle:
		return ev.GoogleCalendarEventID
	case calendar.SourceOutlook:
		return ev.OutlookCalendarEventID
	default:
		return ""
	}
}

func setProviderEventID(ev *calendar.CalendarEvent, name, id string) {
	switch name {
	case calendar.SourceGoogle:
		ev.GoogleCalendarEventID = id
	case calendar.SourceOutlook:
		ev.OutlookCalendarEventID = id
	}
}
