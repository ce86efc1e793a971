// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"database/sql"
	"testing"

	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/testutil"
)

// testSetup contains common test dependencies.
type testSetup struct {
	DB      *sql.DB
	Queries *store.Queries
	Ctx     context.Context
	Cleanup func()
}

// setupTest creates a seeded test database with queries and context.
func setupTest(t *testing.T) *testSetup {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	ctx := context.Background()

	if err := store.Seed(ctx, db); err != nil {
		cleanup()
		t.Fatalf("Seed: %v", err)
	}

	return &testSetup{
		DB:      db,
		Queries: store.New(db),
		Ctx:     ctx,
		Cleanup: cleanup,
	}
}
