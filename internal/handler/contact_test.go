package handler

import (
	"fmt"
	"net/http"
	"testing"
)

func TestSubmitContact_Public(t *testing.T) {
	app := newTestApp(t)

	status, body := app.do(http.MethodPost, "/api/v1/contact", map[string]string{
		"email":   "visitor@example.com",
		"subject": "Venue question",
		"message": "Is the main hall wheelchair accessible?",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", status, body)
	}
}

func TestSubmitContact_Validation(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing email", map[string]string{"subject": "Hi", "message": "Hello"}},
		{"bad email", map[string]string{"email": "not-an-email", "subject": "Hi", "message": "Hello"}},
		{"missing subject", map[string]string{"email": "a@b.com", "message": "Hello"}},
		{"missing message", map[string]string{"email": "a@b.com", "subject": "Hi"}},
		{"script only message", map[string]string{"email": "a@b.com", "subject": "Hi", "message": "<script>x</script>"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := app.do(http.MethodPost, "/api/v1/contact", tc.payload)
			if status != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", status)
			}
		})
	}
}

func TestContactModeration(t *testing.T) {
	app := newTestApp(t)
	app.createUser("member", false, false)
	app.createUser("staffer", false, true)

	status, _ := app.do(http.MethodPost, "/api/v1/contact", map[string]string{
		"email":   "visitor@example.com",
		"subject": "Lost item",
		"message": "I left a jacket at the gala",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status = %d", status)
	}

	// Members cannot read the inbox.
	app.login("member")
	status, _ = app.do(http.MethodGet, "/api/v1/contact", nil)
	if status != http.StatusForbidden {
		t.Errorf("member list: status = %d, want 403", status)
	}
	app.logout()

	app.login("staffer")
	status, body := app.do(http.MethodGet, "/api/v1/contact", nil)
	if status != http.StatusOK {
		t.Fatalf("staff list: status = %d", status)
	}
	var messages []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	dataField(t, body, &messages)
	if len(messages) != 1 || messages[0].Status != "pending" {
		t.Fatalf("messages = %+v, want one pending", messages)
	}

	// Move it to resolved with a note.
	status, body = app.do(http.MethodPut, fmt.Sprintf("/api/v1/contact/%d", messages[0].ID),
		map[string]string{"status": "resolved", "admin_notes": "Jacket returned"})
	if status != http.StatusOK {
		t.Fatalf("update: status = %d (body: %s)", status, body)
	}
	var updated struct {
		Status     string `json:"status"`
		AdminNotes string `json:"admin_notes"`
	}
	dataField(t, body, &updated)
	if updated.Status != "resolved" || updated.AdminNotes != "Jacket returned" {
		t.Errorf("updated = %+v", updated)
	}

	// The status filter narrows the listing.
	status, body = app.do(http.MethodGet, "/api/v1/contact?status=pending", nil)
	if status != http.StatusOK {
		t.Fatalf("filtered list: status = %d", status)
	}
	var pending []struct {
		ID int64 `json:"id"`
	}
	dataField(t, body, &pending)
	if len(pending) != 0 {
		t.Errorf("pending = %+v, want empty", pending)
	}

	// Unknown filter values are rejected.
	status, _ = app.do(http.MethodGet, "/api/v1/contact?status=bogus", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bogus filter: status = %d, want 400", status)
	}
}
