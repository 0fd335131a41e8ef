package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cally-platform/internal/audit"
	"cally-platform/internal/notify"
	"cally-platform/internal/payment"
	"cally-platform/internal/timezone"
	"cally-platform/pkg/logger"
)

// ProviderSource yields the read-model items of one external calendar
// provider for a tenant. Implementations own token handling and config
// persistence; the service only sees canonical items.
type ProviderSource interface {
	Name() string
	ListEvents(ctx context.Context, tenantID string, utcStart, utcEnd time.Time) ([]Item, error)
}

// SyncOp tags an outbox job for the provider-sync worker.
type SyncOp string

const (
	SyncOpCreate SyncOp = "create"
	SyncOpUpdate SyncOp = "update"
)

// SyncJob is the unit published to the provider-sync outbox. The core's
// contract is enqueue-and-return: nothing awaits the downstream push.
type SyncJob struct {
	TenantID string `json:"tenant_id"`
	Date     string `json:"date"`
	EventID  string `json:"event_id"`
	Op       SyncOp `json:"op"`
	Timezone string `json:"timezone,omitempty"`
}

// SyncEnqueuer publishes sync jobs. Failure to enqueue is logged and
// swallowed; providers are best-effort mirrors of the native store.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, job SyncJob) error
}

const defaultProviderTimeout = 5 * time.Second

// ServiceDeps wires the scheduling core. Only Repo and Resolver are
// mandatory; every other collaborator degrades to a no-op when absent.
type ServiceDeps struct {
	Repo     Repository
	Resolver *timezone.Resolver

	Sources  []ProviderSource
	Queue    SyncEnqueuer
	Payments payment.Processor
	Notifier notify.Sender
	Audit    *audit.Service

	ProviderTimeout time.Duration
}

// Service is the scheduling core: calendar reads (widen, fetch, refilter,
// merge) and appointment mutations. Stateless between requests; the event
// store is the single source of truth.
type Service struct {
	repo     Repository
	tz       *timezone.Resolver
	sources  []ProviderSource
	queue    SyncEnqueuer
	payments payment.Processor
	notifier notify.Sender
	audits   *audit.Service

	providerTimeout time.Duration
	clock           func() time.Time
}

func NewService(d ServiceDeps) *Service {
	timeout := d.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Service{
		repo:            d.Repo,
		tz:              d.Resolver,
		sources:         d.Sources,
		queue:           d.Queue,
		payments:        d.Payments,
		notifier:        d.Notifier,
		audits:          d.Audit,
		providerTimeout: timeout,
		clock:           time.Now,
	}
}

// ListRange returns the merged calendar view for a tenant-local date range.
//
// Native fetch and each provider fetch run concurrently and are joined
// before the merge, so output ordering is deterministic regardless of which
// fetch completes first. A slow or failing provider degrades to zero items
// from that provider with a logged warning; the view always renders.
func (s *Service) ListRange(ctx context.Context, tenantID, tz, startDate, endDate string) ([]Item, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrValidation)
	}

	win, err := s.tz.QueryWindow(tz, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var (
		wg        sync.WaitGroup
		native    []CalendarEvent
		nativeErr error
	)
	providerItems := make([][]Item, len(s.sources))

	wg.Add(1)
	go func() {
		defer wg.Done()
		native, nativeErr = s.repo.GetByDateRange(ctx, tenantID, win.QueryStart, win.QueryEnd)
	}()

	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src ProviderSource) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
			defer cancel()

			items, err := src.ListEvents(pctx, tenantID, win.UTCStart, win.UTCEnd)
			if err != nil {
				logger.From(ctx).Warn("provider fetch degraded to empty",
					"provider", src.Name(), "tenant_id", tenantID, "err", err)
				return
			}
			providerItems[i] = items
		}(i, src)
	}
	wg.Wait()

	if nativeErr != nil {
		return nil, nativeErr
	}

	// Mandatory refilter: the store query was widened by a day each side,
	// so each event's local date is recomputed from its start instant and
	// checked against the originally requested range.
	nativeItems := make([]Item, 0, len(native))
	for _, ev := range native {
		if ev.Status == StatusCancelled {
			continue
		}
		if !win.ContainsLocalDate(s.tz.LocalDate(tz, ev.StartTime)) {
			continue
		}
		nativeItems = append(nativeItems, NativeItem(ev))
	}

	return Merge(nativeItems, providerItems...), nil
}

// enqueueSync publishes a job to the outbox without tying the caller's
// outcome to it.
func (s *Service) enqueueSync(ctx context.Context, job SyncJob) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSync(ctx, job); err != nil {
		logger.From(ctx).Warn("sync enqueue failed",
			"tenant_id", job.TenantID, "event_id", job.EventID, "op", string(job.Op), "err", err)
	}
}
