package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// flushOrder lists the tables to clear, children before parents so
// foreign key checks stay satisfied throughout.
var flushOrder = []string{
	"notifications",
	"event_comments",
	"event_registrations",
	"events",
	"contact_messages",
	"organization_invitations",
	"user_roles",
	"profiles",
	"users",
	"organizations",
	"audit_log",
	"sessions",
}

// Flush deletes every row from every application table inside a single
// transaction. The schema itself is untouched.
func Flush(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning flush transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, table := range flushOrder {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return fmt.Errorf("flushing %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing flush: %w", err)
	}

	slog.Info("database flushed", "tables", len(flushOrder), "rows", total)
	return nil
}
