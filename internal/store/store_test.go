package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/util"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "spherelink-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	db, err := NewDB(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func TestCreateUser(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	now := time.Now()
	user, err := q.CreateUser(ctx, CreateUserParams{
		Username:     "testuser",
		Email:        "test@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hashed-password",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if user.ID == 0 {
		t.Error("user.ID should not be 0")
	}
	if user.Username != "testuser" {
		t.Errorf("Username = %q, want %q", user.Username, "testuser")
	}
	if user.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", user.Email, "test@example.com")
	}
	if !user.IsActive {
		t.Error("IsActive should be true")
	}
}

func TestGetUserByUsername(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	now := time.Now()
	created, err := q.CreateUser(ctx, CreateUserParams{
		Username:     "findme",
		Email:        "find@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	found, err := q.GetUserByUsername(ctx, "findme")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %d, want %d", found.ID, created.ID)
	}
	if found.Email != "find@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "find@example.com")
	}
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	_, err := q.GetUserByUsername(ctx, "nobody")
	if err != sql.ErrNoRows {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	now := time.Now()
	params := CreateUserParams{
		Username:     "dupe",
		Email:        "dupe@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := q.CreateUser(ctx, params); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	params.Email = "other@example.com"
	if _, err := q.CreateUser(ctx, params); err == nil {
		t.Error("expected unique constraint error for duplicate username")
	}
}

func TestOrganizationRoundTrip(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	now := time.Now()
	org, err := q.CreateOrganization(ctx, CreateOrganizationParams{
		Name:      "Test Org",
		Slug:      "test-org",
		Email:     "org@example.com",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	found, err := q.GetOrganizationByName(ctx, "Test Org")
	if err != nil {
		t.Fatalf("GetOrganizationByName: %v", err)
	}
	if found.ID != org.ID {
		t.Errorf("ID = %d, want %d", found.ID, org.ID)
	}
	if found.Slug != "test-org" {
		t.Errorf("Slug = %q, want %q", found.Slug, "test-org")
	}
}

func TestUserRoleUnique(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()

	user := mustCreateUser(t, ctx, q, "roleuser", "roleuser@example.com")
	org := mustCreateOrg(t, ctx, q, "Role Org")

	if _, err := q.CreateUserRole(ctx, CreateUserRoleParams{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           "member",
		IsActive:       true,
		AssignedAt:     now,
	}); err != nil {
		t.Fatalf("CreateUserRole: %v", err)
	}

	// Second role in the same organization must violate the unique constraint.
	if _, err := q.CreateUserRole(ctx, CreateUserRoleParams{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           "staff",
		IsActive:       true,
		AssignedAt:     now,
	}); err == nil {
		t.Error("expected unique constraint error for duplicate user role")
	}
}

func TestEventRegistrationFlow(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()

	creator := mustCreateUser(t, ctx, q, "creator", "creator@example.com")
	attendee := mustCreateUser(t, ctx, q, "attendee", "attendee@example.com")
	org := mustCreateOrg(t, ctx, q, "Event Org")

	event, err := q.CreateEvent(ctx, CreateEventParams{
		Title:          "Test Event",
		Slug:           "test-event",
		Description:    "A test event",
		Date:           now.AddDate(0, 0, 7),
		Location:       "Room 1",
		Duration:       60,
		EventType:      "other",
		MaxCapacity:    10,
		OrganizationID: util.NullInt64FromValue(org.ID),
		CreatedBy:      creator.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if _, err := q.CreateRegistration(ctx, attendee.ID, event.ID, now); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	count, err := q.CountRegistrationsByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("CountRegistrationsByEvent: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Double registration must fail on unique(user_id, event_id).
	if _, err := q.CreateRegistration(ctx, attendee.ID, event.ID, now); err == nil {
		t.Error("expected unique constraint error for duplicate registration")
	}

	attendees, err := q.ListAttendeesByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListAttendeesByEvent: %v", err)
	}
	if len(attendees) != 1 {
		t.Fatalf("len(attendees) = %d, want 1", len(attendees))
	}
	if attendees[0].Username != "attendee" {
		t.Errorf("Username = %q, want %q", attendees[0].Username, "attendee")
	}

	n, err := q.DeleteRegistration(ctx, attendee.ID, event.ID)
	if err != nil {
		t.Fatalf("DeleteRegistration: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestDeleteExpiredEvents(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()

	creator := mustCreateUser(t, ctx, q, "creator", "creator@example.com")
	org := mustCreateOrg(t, ctx, q, "Event Org")

	mk := func(title string, date time.Time) {
		t.Helper()
		_, err := q.CreateEvent(ctx, CreateEventParams{
			Title:          title,
			Slug:           util.Slugify(title),
			Date:           date,
			EventType:      "other",
			MaxCapacity:    5,
			OrganizationID: util.NullInt64FromValue(org.ID),
			CreatedBy:      creator.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			t.Fatalf("CreateEvent %q: %v", title, err)
		}
	}

	mk("Past Event", now.AddDate(0, 0, -2))
	mk("Future Event", now.AddDate(0, 0, 2))

	deleted, err := q.DeleteExpiredEvents(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredEvents: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := q.CountEvents(ctx, ListEventsParams{All: true})
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining events = %d, want 1", count)
	}
}

func TestExpireOverdueInvitations(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now()

	inviter := mustCreateUser(t, ctx, q, "inviter", "inviter@example.com")
	org := mustCreateOrg(t, ctx, q, "Invite Org")

	_, err := q.CreateInvitation(ctx, CreateInvitationParams{
		OrganizationID: org.ID,
		Email:          "late@example.com",
		Role:           "member",
		Token:          "token-overdue",
		InvitedBy:      inviter.ID,
		ExpiresAt:      now.Add(-time.Hour),
		CreatedAt:      now.Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	_, err = q.CreateInvitation(ctx, CreateInvitationParams{
		OrganizationID: org.ID,
		Email:          "fresh@example.com",
		Role:           "member",
		Token:          "token-fresh",
		InvitedBy:      inviter.ID,
		ExpiresAt:      now.Add(48 * time.Hour),
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	expired, err := q.ExpireOverdueInvitations(ctx, now)
	if err != nil {
		t.Fatalf("ExpireOverdueInvitations: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	inv, err := q.GetInvitationByToken(ctx, "token-fresh")
	if err != nil {
		t.Fatalf("GetInvitationByToken: %v", err)
	}
	if inv.Status != "pending" {
		t.Errorf("fresh invitation status = %q, want %q", inv.Status, "pending")
	}
}

func mustCreateUser(t *testing.T, ctx context.Context, q *Queries, username, email string) model.User {
	t.Helper()
	now := time.Now()
	u, err := q.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser %q: %v", username, err)
	}
	return u
}

func mustCreateOrg(t *testing.T, ctx context.Context, q *Queries, name string) model.Organization {
	t.Helper()
	now := time.Now()
	org, err := q.CreateOrganization(ctx, CreateOrganizationParams{
		Name:      name,
		Slug:      util.Slugify(name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateOrganization %q: %v", name, err)
	}
	return org
}
