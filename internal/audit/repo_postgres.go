package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends audit events to the audit_events table. There are
// deliberately no update or delete statements in this file.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events
			(id, tenant_id, type, actor_user_id, actor_role, calendar_event_id, recurrence_group_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.TenantID, string(e.Type),
		e.ActorUserID, e.ActorRole,
		e.CalendarEventID, e.RecurrenceGroupID,
		e.Message, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}
