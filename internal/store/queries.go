// Package store provides database access: connection setup, migrations,
// the query layer, seeding, and the flush workflow.
package store

import (
	"context"
	"database/sql"
)

// DBTX is the interface shared by *sql.DB and *sql.Tx so queries can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries provides typed access to the database.
type Queries struct {
	db DBTX
}

// New creates a Queries instance backed by the given database or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries instance bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
