package provider

import (
	"context"
	"errors"
	"time"

	"cally-platform/internal/calendar"
	"cally-platform/pkg/logger"
)

// Source binds one Client to the per-tenant ConfigStore and adapts it to
// the read-side and push-side interfaces the scheduling core consumes.
//
// A tenant without a connection yields zero events and no error; the merged
// calendar must render regardless of which providers are linked.
type Source struct {
	store  ConfigStore
	client Client
}

func NewSource(store ConfigStore, client Client) *Source {
	return &Source{store: store, client: client}
}

func (s *Source) Name() string { return s.client.Name() }

func (s *Source) ListEvents(ctx context.Context, tenantID string, utcStart, utcEnd time.Time) ([]calendar.Item, error) {
	cfg, err := s.store.Get(ctx, tenantID, s.client.Name())
	if errors.Is(err, ErrNotConnected) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, refreshed, err := s.client.ListEvents(ctx, cfg, utcStart, utcEnd)
	s.persistRefresh(ctx, cfg, refreshed)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// PushCreate mirrors a native appointment at the provider and returns the
// provider event id to link. ErrNotConnected passes through so the worker
// can skip the tenant quietly.
func (s *Source) PushCreate(ctx context.Context, ev calendar.CalendarEvent) (string, error) {
	cfg, err := s.store.Get(ctx, ev.TenantID, s.client.Name())
	if err != nil {
		return "", err
	}

	providerID, refreshed, err := s.client.CreateEvent(ctx, cfg, ev)
	s.persistRefresh(ctx, cfg, refreshed)
	return providerID, err
}

// PushUpdate pushes the current appointment state to the linked provider
// event.
func (s *Source) PushUpdate(ctx context.Context, ev calendar.CalendarEvent, providerEventID string) error {
	cfg, err := s.store.Get(ctx, ev.TenantID, s.client.Name())
	if err != nil {
		return err
	}

	refreshed, err := s.client.UpdateEvent(ctx, cfg, ev, providerEventID)
	s.persistRefresh(ctx, cfg, refreshed)
	return err
}

// persistRefresh saves rotated tokens. Losing a refreshed token only costs
// one extra refresh round-trip later, so failures are logged, not returned.
func (s *Source) persistRefresh(ctx context.Context, before, after Config) {
	if after.AccessToken == "" || after.AccessToken == before.AccessToken {
		return
	}
	if err := s.store.Save(ctx, after); err != nil {
		logger.From(ctx).Warn("persisting refreshed provider token failed",
			"provider", s.client.Name(), "tenant_id", after.TenantID, "err", err)
	}
}
