package calendar

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cally-platform/pkg/utils"
)

// Repository is the persistence contract for calendar events.
//
// Rules:
// - Every query is tenant-scoped; no cross-tenant access path exists.
// - Single-record consistency relies on the store's own atomic put/update;
//   multi-record operations (recurrence creation) are explicitly non-atomic.
type Repository interface {
	GetByDateRange(ctx context.Context, tenantID, startDate, endDate string) ([]CalendarEvent, error)
	GetByID(ctx context.Context, tenantID, date, id string) (CalendarEvent, error)
	// GetByIDOnly scans the whole tenant partition. O(n) in tenant event
	// count; acceptable for interactive/agent tools, not for hot paths.
	GetByIDOnly(ctx context.Context, tenantID, id string) (CalendarEvent, error)
	Create(ctx context.Context, ev CalendarEvent) error
	Update(ctx context.Context, ev CalendarEvent) error
	// RecordRefund attaches a refund id to an existing event without
	// rewriting the rest of the row, so it cannot clobber a concurrent
	// reschedule of the same appointment.
	RecordRefund(ctx context.Context, tenantID, id, refundID string, at time.Time) error
}

// PostgresRepo persists events in the calendar_events table.
//
// Assumed schema:
//   calendar_events (
//     tenant_id TEXT NOT NULL, id TEXT NOT NULL, date DATE NOT NULL, ...,
//     recurrence_rule JSONB, PRIMARY KEY (tenant_id, id)
//   )
// with an index on (tenant_id, date) for range reads.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const eventColumns = `
tenant_id, id, date, start_time, end_time, duration_minutes, is_all_day,
title, description, location, notes, color, status,
visitor_name, visitor_email,
recurrence_group_id, recurrence_rule,
google_calendar_event_id, outlook_calendar_event_id,
video_room_id, payment_intent_id, refund_id,
created_at, updated_at`

func (r *PostgresRepo) GetByDateRange(ctx context.Context, tenantID, startDate, endDate string) ([]CalendarEvent, error) {
	if tenantID == "" {
		return nil, ErrValidation
	}
	q := fmt.Sprintf(`
SELECT %s
FROM calendar_events
WHERE tenant_id = $1 AND date >= $2 AND date <= $3
ORDER BY start_time, id
`, eventColumns)

	rows, err := r.db.QueryContext(ctx, q, tenantID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CalendarEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetByID(ctx context.Context, tenantID, date, id string) (CalendarEvent, error) {
	q := fmt.Sprintf(`
SELECT %s
FROM calendar_events
WHERE tenant_id = $1 AND date = $2 AND id = $3
`, eventColumns)

	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, tenantID, date, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CalendarEvent{}, ErrNotFound
	}
	return ev, err
}

func (r *PostgresRepo) GetByIDOnly(ctx context.Context, tenantID, id string) (CalendarEvent, error) {
	q := fmt.Sprintf(`
SELECT %s
FROM calendar_events
WHERE tenant_id = $1 AND id = $2
`, eventColumns)

	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CalendarEvent{}, ErrNotFound
	}
	return ev, err
}

func (r *PostgresRepo) Create(ctx context.Context, ev CalendarEvent) error {
	if ev.TenantID == "" || ev.ID == "" {
		return ErrValidation
	}
	ruleJSON, err := marshalRule(ev.Rule)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO calendar_events (
  tenant_id, id, date, start_time, end_time, duration_minutes, is_all_day,
  title, description, location, notes, color, status,
  visitor_name, visitor_email,
  recurrence_group_id, recurrence_rule,
  google_calendar_event_id, outlook_calendar_event_id,
  video_room_id, payment_intent_id, refund_id,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
)
`
	_, err = r.db.ExecContext(ctx, q,
		ev.TenantID, ev.ID, ev.Date, ev.StartTime, ev.EndTime, ev.DurationMinutes, ev.IsAllDay,
		ev.Title, ev.Description, ev.Location, ev.Notes, ev.Color, ev.Status,
		ev.VisitorName, ev.VisitorEmail,
		ev.RecurrenceGroupID, ruleJSON,
		ev.GoogleCalendarEventID, ev.OutlookCalendarEventID,
		ev.VideoRoomID, ev.PaymentIntentID, ev.RefundID,
		ev.CreatedAt, ev.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, ev CalendarEvent) error {
	ruleJSON, err := marshalRule(ev.Rule)
	if err != nil {
		return err
	}

	const q = `
UPDATE calendar_events SET
  date = $3, start_time = $4, end_time = $5, duration_minutes = $6, is_all_day = $7,
  title = $8, description = $9, location = $10, notes = $11, color = $12, status = $13,
  visitor_name = $14, visitor_email = $15,
  recurrence_group_id = $16, recurrence_rule = $17,
  google_calendar_event_id = $18, outlook_calendar_event_id = $19,
  video_room_id = $20, payment_intent_id = $21, refund_id = $22,
  updated_at = $23
WHERE tenant_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		ev.TenantID, ev.ID, ev.Date, ev.StartTime, ev.EndTime, ev.DurationMinutes, ev.IsAllDay,
		ev.Title, ev.Description, ev.Location, ev.Notes, ev.Color, ev.Status,
		ev.VisitorName, ev.VisitorEmail,
		ev.RecurrenceGroupID, ruleJSON,
		ev.GoogleCalendarEventID, ev.OutlookCalendarEventID,
		ev.VideoRoomID, ev.PaymentIntentID, ev.RefundID,
		ev.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRefund locks the event row, then writes the refund id. The lock
// keeps the existence check and the write consistent under concurrent
// full-row updates.
func (r *PostgresRepo) RecordRefund(ctx context.Context, tenantID, id, refundID string, at time.Time) error {
	if tenantID == "" || id == "" {
		return ErrValidation
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var found string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM calendar_events WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
			tenantID, id,
		).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE calendar_events SET refund_id = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`,
			tenantID, id, refundID, at,
		)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (CalendarEvent, error) {
	var ev CalendarEvent
	var date time.Time
	var ruleJSON sql.NullString

	err := row.Scan(
		&ev.TenantID, &ev.ID, &date, &ev.StartTime, &ev.EndTime, &ev.DurationMinutes, &ev.IsAllDay,
		&ev.Title, &ev.Description, &ev.Location, &ev.Notes, &ev.Color, &ev.Status,
		&ev.VisitorName, &ev.VisitorEmail,
		&ev.RecurrenceGroupID, &ruleJSON,
		&ev.GoogleCalendarEventID, &ev.OutlookCalendarEventID,
		&ev.VideoRoomID, &ev.PaymentIntentID, &ev.RefundID,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return CalendarEvent{}, err
	}
	ev.Date = date.Format("2006-01-02")

	if ruleJSON.Valid && ruleJSON.String != "" {
		var rule RecurrenceRule
		if err := json.Unmarshal([]byte(ruleJSON.String), &rule); err != nil {
			return CalendarEvent{}, fmt.Errorf("calendar: bad recurrence_rule json: %w", err)
		}
		ev.Rule = &rule
	}
	return ev, nil
}

func marshalRule(rule *RecurrenceRule) (any, error) {
	if rule == nil {
		return nil, nil
	}
	b, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
