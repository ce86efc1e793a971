package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/testutil"
)

func TestNew(t *testing.T) {
	logger := testutil.TestLogger()

	s := New(nil, logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cron == nil {
		t.Error("New() scheduler has nil cron")
	}
	if s.logger != logger {
		t.Error("New() scheduler has wrong logger")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(nil, testutil.TestLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := len(s.cron.Entries()); got != 3 {
		t.Errorf("registered jobs = %d, want 3", got)
	}

	s.Stop()
}

func TestPurgeExpiredEvents(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := store.Seed(ctx, db); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	// Backdate one seeded event so it becomes eligible for purging.
	if _, err := db.ExecContext(ctx,
		`UPDATE events SET date = ? WHERE id = (SELECT MIN(id) FROM events)`,
		time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("backdating event: %v", err)
	}

	var before int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&before); err != nil {
		t.Fatal(err)
	}

	s := New(db, testutil.TestLoggerSilent())
	if err := s.purgeExpiredEvents(); err != nil {
		t.Fatalf("purgeExpiredEvents: %v", err)
	}

	var after int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&after); err != nil {
		t.Fatal(err)
	}
	if after != before-1 {
		t.Errorf("events after purge = %d, want %d", after, before-1)
	}

	// The purge writes an audit entry.
	entries, err := store.New(db).ListAuditEntries(ctx, 5)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Message == "expired events purged by scheduler" {
			found = true
		}
	}
	if !found {
		t.Error("expected an audit entry for the purge")
	}
}

func TestPurgeExpiredEvents_NothingToDo(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	s := New(db, testutil.TestLoggerSilent())
	if err := s.purgeExpiredEvents(); err != nil {
		t.Fatalf("purgeExpiredEvents on empty db: %v", err)
	}

	entries, err := store.New(db).ListAuditEntries(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("no-op purge wrote %d audit entries", len(entries))
	}
}

func TestExpireInvitations(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := store.Seed(ctx, db); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var orgID, userID int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM organizations LIMIT 1`).Scan(&orgID); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRowContext(ctx, `SELECT id FROM users LIMIT 1`).Scan(&userID); err != nil {
		t.Fatal(err)
	}

	// One overdue pending invitation, one still valid.
	now := time.Now()
	for i, expires := range []time.Time{now.Add(-time.Hour), now.Add(24 * time.Hour)} {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO organization_invitations
				(organization_id, email, role, token, status, invited_by, expires_at, created_at)
			VALUES (?, ?, 'member', ?, 'pending', ?, ?, ?)`,
			orgID, "invitee"+string(rune('a'+i))+"@example.com", "tok-"+string(rune('a'+i)),
			userID, expires, now); err != nil {
			t.Fatalf("inserting invitation: %v", err)
		}
	}

	s := New(db, testutil.TestLoggerSilent())
	if err := s.expireInvitations(); err != nil {
		t.Fatalf("expireInvitations: %v", err)
	}

	var expired, pending int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organization_invitations WHERE status = 'expired'`).Scan(&expired); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organization_invitations WHERE status = 'pending'`).Scan(&pending); err != nil {
		t.Fatal(err)
	}
	if expired != 1 || pending != 1 {
		t.Errorf("expired = %d, pending = %d, want 1 and 1", expired, pending)
	}
}
