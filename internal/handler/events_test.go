package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestListEvents_Public(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staff", false, true)
	app.createEvent(staff.ID, "Basketball Night", time.Now().Add(48*time.Hour), 50)
	app.createEvent(staff.ID, "Morning Yoga", time.Now().Add(72*time.Hour), 20)

	status, body := app.do(http.MethodGet, "/api/v1/events", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", status, body)
	}

	var events []struct {
		Slug string `json:"slug"`
	}
	dataField(t, body, &events)
	if len(events) != 2 {
		t.Errorf("len(events) = %d, want 2", len(events))
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	app := newTestApp(t)

	status, _ := app.do(http.MethodGet, "/api/v1/events/does-not-exist", nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestCreateEvent_StaffOnly(t *testing.T) {
	app := newTestApp(t)
	app.createUser("member", false, false)
	app.createUser("staffer", false, true)

	payload := map[string]any{
		"title":        "Chess Tournament",
		"description":  "Annual open tournament",
		"date":         time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339),
		"location":     "Library",
		"event_type":   "academic",
		"max_capacity": 32,
	}

	app.login("member")
	status, _ := app.do(http.MethodPost, "/api/v1/events", payload)
	if status != http.StatusForbidden {
		t.Errorf("member create: status = %d, want 403", status)
	}
	app.logout()

	app.login("staffer")
	status, body := app.do(http.MethodPost, "/api/v1/events", payload)
	if status != http.StatusCreated {
		t.Fatalf("staff create: status = %d, want 201 (body: %s)", status, body)
	}

	var event struct {
		Slug string `json:"slug"`
	}
	dataField(t, body, &event)
	if event.Slug != "chess-tournament" {
		t.Errorf("slug = %q, want chess-tournament", event.Slug)
	}
}

func TestCreateEvent_DuplicateTitle(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createEvent(staff.ID, "Chess Tournament", time.Now().Add(48*time.Hour), 32)

	app.login("staffer")
	status, _ := app.do(http.MethodPost, "/api/v1/events", map[string]any{
		"title":        "Chess Tournament",
		"date":         time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339),
		"event_type":   "academic",
		"max_capacity": 32,
	})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", status)
	}
}

func TestCreateEvent_RejectsPastDate(t *testing.T) {
	app := newTestApp(t)
	app.createUser("staffer", false, true)

	app.login("staffer")
	status, _ := app.do(http.MethodPost, "/api/v1/events", map[string]any{
		"title":        "Yesterday's News",
		"date":         time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		"event_type":   "other",
		"max_capacity": 10,
	})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", status)
	}
}

func TestRegister_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createUser("member", false, false)
	event := app.createEvent(staff.ID, "Salsa Class", time.Now().Add(48*time.Hour), 30)

	app.login("member")

	status, body := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusCreated {
		t.Fatalf("register: status = %d, want 201 (body: %s)", status, body)
	}

	// Registering twice conflicts.
	status, _ = app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", status)
	}

	// The event shows up under my events.
	status, body = app.do(http.MethodGet, "/api/v1/my/events", nil)
	if status != http.StatusOK {
		t.Fatalf("my events: status = %d", status)
	}
	var mine []struct {
		Slug string `json:"slug"`
	}
	dataField(t, body, &mine)
	if len(mine) != 1 || mine[0].Slug != event.Slug {
		t.Errorf("my events = %+v, want [%s]", mine, event.Slug)
	}

	// Registration creates a notification.
	status, body = app.do(http.MethodGet, "/api/v1/my/notifications/unread", nil)
	if status != http.StatusOK {
		t.Fatalf("unread count: status = %d", status)
	}
	var unread struct {
		Unread int64 `json:"unread"`
	}
	dataField(t, body, &unread)
	if unread.Unread != 1 {
		t.Errorf("unread = %d, want 1", unread.Unread)
	}

	// Cancel and verify.
	status, _ = app.do(http.MethodDelete, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusOK {
		t.Errorf("unregister: status = %d, want 200", status)
	}
	status, _ = app.do(http.MethodDelete, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusNotFound {
		t.Errorf("unregister again: status = %d, want 404", status)
	}
}

func TestRegister_FullEvent(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createUser("first", false, false)
	app.createUser("second", false, false)
	event := app.createEvent(staff.ID, "Tiny Workshop", time.Now().Add(48*time.Hour), 1)

	app.login("first")
	if status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil); status != http.StatusCreated {
		t.Fatalf("first register: status = %d", status)
	}
	app.logout()

	app.login("second")
	status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusConflict {
		t.Errorf("register on full event: status = %d, want 409", status)
	}
}

func TestRegister_PastEvent(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createUser("member", false, false)
	event := app.createEvent(staff.ID, "Old Meetup", time.Now().Add(-48*time.Hour), 30)

	app.login("member")
	status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
}

func TestRegister_RequiresAuth(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	event := app.createEvent(staff.ID, "Concert", time.Now().Add(48*time.Hour), 100)

	status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestTicket(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createUser("member", false, false)
	event := app.createEvent(staff.ID, "Gala Dinner", time.Now().Add(48*time.Hour), 100)

	app.login("member")

	// No ticket before registering.
	status, _ := app.do(http.MethodGet, "/api/v1/events/"+event.Slug+"/ticket", nil)
	if status != http.StatusNotFound {
		t.Errorf("ticket before register: status = %d, want 404", status)
	}

	if status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil); status != http.StatusCreated {
		t.Fatalf("register: status = %d", status)
	}

	status, body := app.do(http.MethodGet, "/api/v1/events/"+event.Slug+"/ticket", nil)
	if status != http.StatusOK {
		t.Fatalf("ticket: status = %d, want 200", status)
	}
	// PNG magic bytes.
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Errorf("ticket body is not a PNG (first bytes: %x)", body[:min(8, len(body))])
	}
}

func TestAttendees_CSVAndPermissions(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createUser("member", false, false)
	event := app.createEvent(staff.ID, "Hackathon", time.Now().Add(48*time.Hour), 100)

	app.login("member")
	if status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/register", nil); status != http.StatusCreated {
		t.Fatalf("register: status = %d", status)
	}

	// Members cannot read the attendee list.
	status, _ := app.do(http.MethodGet, "/api/v1/events/"+event.Slug+"/attendees", nil)
	if status != http.StatusForbidden {
		t.Errorf("member attendees: status = %d, want 403", status)
	}
	app.logout()

	app.login("staffer")
	status, body := app.do(http.MethodGet, "/api/v1/events/"+event.Slug+"/attendees.csv", nil)
	if status != http.StatusOK {
		t.Fatalf("attendees csv: status = %d", status)
	}
	csv := string(body)
	if !strings.Contains(csv, "username") || !strings.Contains(csv, "member") {
		t.Errorf("csv missing expected rows:\n%s", csv)
	}
}

func TestUpdateEvent_OnlyManagersAllowed(t *testing.T) {
	app := newTestApp(t)
	creator := app.createUser("creator", false, true)
	app.createUser("otherstaff", false, true)
	event := app.createEvent(creator.ID, "Lecture Series", time.Now().Add(48*time.Hour), 100)

	// Staff who did not create the event can still manage it.
	app.login("otherstaff")
	status, _ := app.do(http.MethodPut, "/api/v1/events/"+event.Slug, map[string]any{
		"title":        "Lecture Series",
		"date":         time.Now().Add(96 * time.Hour).Format(time.RFC3339),
		"event_type":   "academic",
		"max_capacity": 120,
	})
	if status != http.StatusOK {
		t.Errorf("staff update: status = %d, want 200", status)
	}
}

func TestDeleteEvent(t *testing.T) {
	app := newTestApp(t)
	app.createUser("staffer", false, true)
	staff := app.createUser("creator", false, true)
	event := app.createEvent(staff.ID, "Cancelled Show", time.Now().Add(48*time.Hour), 100)

	app.login("creator")
	status, _ := app.do(http.MethodDelete, "/api/v1/events/"+event.Slug, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status = %d, want 200", status)
	}

	status, _ = app.do(http.MethodGet, "/api/v1/events/"+event.Slug, nil)
	if status != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", status)
	}
}

func TestComments(t *testing.T) {
	app := newTestApp(t)
	staff := app.createUser("staffer", false, true)
	app.createUser("member", false, false)
	event := app.createEvent(staff.ID, "Open Mic", time.Now().Add(48*time.Hour), 100)

	app.login("member")

	status, _ := app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/comments",
		map[string]string{"body": "Looking forward to this!"})
	if status != http.StatusCreated {
		t.Fatalf("create comment: status = %d, want 201", status)
	}

	// Empty after sanitizing is rejected.
	status, _ = app.do(http.MethodPost, "/api/v1/events/"+event.Slug+"/comments",
		map[string]string{"body": "<script>alert(1)</script>"})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("script-only comment: status = %d, want 422", status)
	}

	status, body := app.do(http.MethodGet, "/api/v1/events/"+event.Slug+"/comments", nil)
	if status != http.StatusOK {
		t.Fatalf("list comments: status = %d", status)
	}
	var comments []struct {
		Body string `json:"body"`
	}
	dataField(t, body, &comments)
	if len(comments) != 1 {
		t.Errorf("len(comments) = %d, want 1", len(comments))
	}
}
