package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

// CreateAuditEntryParams holds the fields for an audit log entry.
type CreateAuditEntryParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	IPAddress string
	Metadata  string
	CreatedAt time.Time
}

// CreateAuditEntry appends a row to the audit log.
func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (model.AuditEntry, error) {
	var e model.AuditEntry
	err := q.db.QueryRowContext(ctx, `
INSERT INTO audit_log (level, category, message, user_id, ip_address, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, level, category, message, user_id, ip_address, metadata, created_at`,
		arg.Level, arg.Category, arg.Message, arg.UserID, arg.IPAddress, arg.Metadata, arg.CreatedAt).
		Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID, &e.IPAddress, &e.Metadata, &e.CreatedAt)
	return e, err
}

// ListAuditEntries returns the most recent audit entries up to limit.
func (q *Queries) ListAuditEntries(ctx context.Context, limit int64) ([]model.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, level, category, message, user_id, ip_address, metadata, created_at
FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID,
			&e.IPAddress, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOldAuditEntries removes audit entries created before the cutoff.
func (q *Queries) DeleteOldAuditEntries(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	return err
}
