package calendar

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory event store for tests and early development.
// It enforces tenant isolation on every read and mirrors the Postgres
// repository's key semantics: (tenant_id, date, id), with an id-only scan
// fallback.
type MemoryRepo struct {
	mu     sync.Mutex
	events map[string]map[string]CalendarEvent // tenant_id -> id -> event
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{events: make(map[string]map[string]CalendarEvent)}
}

func (r *MemoryRepo) GetByDateRange(ctx context.Context, tenantID, startDate, endDate string) ([]CalendarEvent, error) {
	if tenantID == "" {
		return nil, ErrValidation
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CalendarEvent, 0)
	for _, ev := range r.events[tenantID] {
		if ev.Date >= startDate && ev.Date <= endDate {
			out = append(out, ev)
		}
	}
	// Map iteration order is random; readers rely on repeatable ordering,
	// with id as the tiebreaker for equal starts.
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, tenantID, date, id string) (CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[tenantID][id]
	if !ok || ev.Date != date {
		return CalendarEvent{}, ErrNotFound
	}
	return ev, nil
}

func (r *MemoryRepo) GetByIDOnly(ctx context.Context, tenantID, id string) (CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[tenantID][id]
	if !ok {
		return CalendarEvent{}, ErrNotFound
	}
	return ev, nil
}

func (r *MemoryRepo) Create(ctx context.Context, ev CalendarEvent) error {
	if ev.TenantID == "" || ev.ID == "" {
		return ErrValidation
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.events[ev.TenantID] == nil {
		r.events[ev.TenantID] = make(map[string]CalendarEvent)
	}
	if _, exists := r.events[ev.TenantID][ev.ID]; exists {
		return ErrValidation
	}
	r.events[ev.TenantID][ev.ID] = ev
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, ev CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[ev.TenantID][ev.ID]; !ok {
		return ErrNotFound
	}
	r.events[ev.TenantID][ev.ID] = ev
	return nil
}

func (r *MemoryRepo) RecordRefund(ctx context.Context, tenantID, id, refundID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[tenantID][id]
	if !ok {
		return ErrNotFound
	}
	ev.RefundID = refundID
	ev.UpdatedAt = at
	r.events[tenantID][id] = ev
	return nil
}
