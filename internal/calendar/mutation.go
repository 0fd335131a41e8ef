package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cally-platform/internal/audit"
	"cally-platform/internal/auth"
	"cally-platform/internal/notify"
	"cally-platform/pkg/logger"
)

// Update applies a partial change set to one appointment.
//
// Lookup is by the (tenant_id, date, id) key; an empty date falls back to a
// tenant-wide scan by id, an accepted O(n) cost for interactive and
// agent-driven tools. Only fields present in upd are touched. When the
// start moves and no explicit end is given, the end is recomputed from the
// stored duration inside the mutation, never left to the caller. The local
// partition date follows the new start.
//
// After a successful write the change is pushed to any linked provider via
// the outbox, detached from this call's outcome.
func (s *Service) Update(ctx context.Context, tenantID, tz, date, eventID string, upd EventUpdate) (CalendarEvent, error) {
	if tenantID == "" || eventID == "" {
		return CalendarEvent{}, fmt.Errorf("%w: tenant id and event id required", ErrValidation)
	}

	ev, err := s.find(ctx, tenantID, date, eventID)
	if err != nil {
		return CalendarEvent{}, err
	}
	wasCancelled := ev.Status == StatusCancelled

	if err := applyUpdate(&ev, upd); err != nil {
		return CalendarEvent{}, err
	}

	startChanged := upd.StartTime != nil
	if startChanged && upd.EndTime == nil && ev.DurationMinutes > 0 {
		ev.EndTime = ev.StartTime.Add(time.Duration(ev.DurationMinutes) * time.Minute)
	}
	if startChanged {
		ev.Date = s.tz.LocalDate(tz, ev.StartTime)
	}
	if !ev.EndTime.After(ev.StartTime) {
		return CalendarEvent{}, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}

	ev.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, ev); err != nil {
		return CalendarEvent{}, err
	}

	if !wasCancelled && ev.Status == StatusCancelled {
		s.handleCancellation(ctx, &ev)
	} else {
		s.auditMutation(ctx, audit.EventTypeUpdated, ev, "appointment updated")
	}

	s.enqueueSync(ctx, SyncJob{TenantID: tenantID, Date: ev.Date, EventID: ev.ID, Op: SyncOpUpdate, Timezone: tz})
	return ev, nil
}

// Cancel soft-deletes an appointment via status transition. The scheduling
// core never hard-deletes.
func (s *Service) Cancel(ctx context.Context, tenantID, tz, date, eventID string) (CalendarEvent, error) {
	st := StatusCancelled
	return s.Update(ctx, tenantID, tz, date, eventID, EventUpdate{Status: &st})
}

func (s *Service) find(ctx context.Context, tenantID, date, eventID string) (CalendarEvent, error) {
	if date != "" {
		return s.repo.GetByID(ctx, tenantID, date, eventID)
	}
	return s.repo.GetByIDOnly(ctx, tenantID, eventID)
}

func applyUpdate(ev *CalendarEvent, upd EventUpdate) error {
	if upd.Title != nil {
		ev.Title = *upd.Title
	}
	if upd.Description != nil {
		ev.Description = *upd.Description
	}
	if upd.Location != nil {
		ev.Location = *upd.Location
	}
	if upd.Notes != nil {
		ev.Notes = *upd.Notes
	}
	if upd.Color != nil {
		ev.Color = *upd.Color
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *upd.Status)
		}
		ev.Status = *upd.Status
	}
	if upd.StartTime != nil {
		ev.StartTime = upd.StartTime.UTC()
	}
	if upd.EndTime != nil {
		ev.EndTime = upd.EndTime.UTC()
	}
	if upd.DurationMinutes != nil {
		if *upd.DurationMinutes < 0 {
			return fmt.Errorf("%w: duration must be positive", ErrValidation)
		}
		ev.DurationMinutes = *upd.DurationMinutes
	}
	if upd.GoogleCalendarEventID != nil {
		ev.GoogleCalendarEventID = *upd.GoogleCalendarEventID
	}
	if upd.OutlookCalendarEventID != nil {
		ev.OutlookCalendarEventID = *upd.OutlookCalendarEventID
	}
	return nil
}

// handleCancellation runs the cancellation side effects: a synchronous
// best-effort full refund when a payment is linked, then the visitor
// notice. The appointment is already persisted as cancelled; nothing here
// can undo that. Customer-visible state changes immediately, money movement
// is best-effort — an accepted asymmetry, surfaced via logs only.
func (s *Service) handleCancellation(ctx context.Context, ev *CalendarEvent) {
	log := logger.From(ctx)

	var refundAmount int64
	if ev.PaymentIntentID != "" && s.payments != nil {
		refund, err := s.payments.CreateFullRefund(ctx, ev.PaymentIntentID)
		if err != nil {
			log.Warn("refund failed; appointment stays cancelled",
				"tenant_id", ev.TenantID, "event_id", ev.ID, "payment_intent_id", ev.PaymentIntentID, "err", err)
		} else {
			ev.RefundID = refund.ID
			ev.UpdatedAt = s.clock().UTC()
			if uerr := s.repo.RecordRefund(ctx, ev.TenantID, ev.ID, refund.ID, ev.UpdatedAt); uerr != nil {
				log.Warn("storing refund id failed", "tenant_id", ev.TenantID, "event_id", ev.ID, "err", uerr)
			}
			if intent, ierr := s.payments.GetPaymentIntent(ctx, ev.PaymentIntentID); ierr == nil {
				refundAmount = intent.AmountMinor
			}
		}
	}

	if s.notifier != nil && ev.VisitorEmail != "" {
		notice := notify.CancellationNotice{
			TenantID:          ev.TenantID,
			EventID:           ev.ID,
			Title:             ev.Title,
			Start:             ev.StartTime,
			VisitorName:       ev.VisitorName,
			VisitorEmail:      ev.VisitorEmail,
			RefundID:          ev.RefundID,
			RefundAmountMinor: refundAmount,
		}
		if err := s.notifier.SendBookingCancelled(ctx, notice); err != nil {
			log.Warn("cancellation email failed", "tenant_id", ev.TenantID, "event_id", ev.ID, "err", err)
		}
	}

	if s.audits != nil {
		meta, _ := json.Marshal(map[string]string{"refund_id": ev.RefundID})
		actor, _ := auth.UserID(ctx)
		role, _ := auth.Role(ctx)
		if err := s.audits.LogCancellation(ctx, ev.TenantID, actor, role, ev.ID, string(meta)); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("audit append failed", "tenant_id", ev.TenantID, "event_id", ev.ID, "err", err)
		}
	}
}
