package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/spherelink/spherelink/internal/auth"
	"github.com/spherelink/spherelink/internal/cache"
	"github.com/spherelink/spherelink/internal/config"
	"github.com/spherelink/spherelink/internal/mailer"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/testutil"
	"github.com/spherelink/spherelink/internal/version"
)

const testPassword = "correct-horse-battery"

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash hashes the shared test password once; argon2id is
// deliberately slow and every created user reuses the same credential.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		testHash = h
	})
	return testHash
}

// testApp wires a full HTTP stack (sessions, user loading, routes)
// around a temp database for end-to-end handler tests.
type testApp struct {
	t       *testing.T
	db      *sql.DB
	queries *store.Queries
	server  *httptest.Server
	client  *http.Client
	handler *Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	cfg := config.Config{
		SessionSecret: "test-secret-0123456789abcdefghij",
		Env:           "development",
		UploadsDir:    t.TempDir(),
		CacheTTL:      300,
		CacheMaxSize:  100,
		SMTPFrom:      "noreply@example.com",
	}

	sm := scs.New()
	sm.Lifetime = time.Hour

	c := cache.NewMemory(5*time.Minute, 100)
	t.Cleanup(func() { _ = c.Close() })

	h := New(db, cfg, sm, c, mailer.New(cfg, "http://localhost:8080"), version.Info{Version: "test"})

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Use(middleware.LoadUser(sm, db))
	r.Get("/health", h.Health)
	r.Mount("/api/v1", h.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}

	return &testApp{
		t:       t,
		db:      db,
		queries: store.New(db),
		server:  srv,
		client:  &http.Client{Jar: jar},
		handler: h,
	}
}

func (a *testApp) createUser(username string, superuser, staff bool) model.User {
	a.t.Helper()

	now := time.Now()
	user, err := a.queries.CreateUser(context.Background(), store.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: testPasswordHash(a.t),
		IsSuperuser:  superuser,
		IsStaff:      staff,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		a.t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

func (a *testApp) createEvent(createdBy int64, title string, date time.Time, capacity int64) model.Event {
	a.t.Helper()

	now := time.Now()
	event, err := a.queries.CreateEvent(context.Background(), store.CreateEventParams{
		Title:       title,
		Slug:        slugifyForTest(title),
		Description: "A test event",
		Date:        date,
		Location:    "Main hall",
		Duration:    60,
		EventType:   model.EventTypeAcademic,
		MaxCapacity: capacity,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		a.t.Fatalf("CreateEvent(%s): %v", title, err)
	}
	return event
}

func (a *testApp) createOrganization(name string) model.Organization {
	a.t.Helper()

	now := time.Now()
	org, err := a.queries.CreateOrganization(context.Background(), store.CreateOrganizationParams{
		Name:      name,
		Slug:      slugifyForTest(name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		a.t.Fatalf("CreateOrganization(%s): %v", name, err)
	}
	return org
}

func (a *testApp) grantRole(userID, orgID int64, role string) {
	a.t.Helper()

	_, err := a.queries.CreateUserRole(context.Background(), store.CreateUserRoleParams{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		IsActive:       true,
		AssignedAt:     time.Now(),
	})
	if err != nil {
		a.t.Fatalf("CreateUserRole: %v", err)
	}
}

// do issues a request against the test server, JSON-encoding body when
// non-nil, and returns the status code and raw response body.
func (a *testApp) do(method, path string, body any) (int, []byte) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	if err != nil {
		a.t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("reading response body: %v", err)
	}
	return resp.StatusCode, raw
}

// login authenticates the shared client's cookie jar as the given user.
func (a *testApp) login(username string) {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": username, "password": testPassword})
	if status != http.StatusOK {
		a.t.Fatalf("login as %s: status %d, body %s", username, status, body)
	}
}

// logout clears the current session.
func (a *testApp) logout() {
	a.t.Helper()

	status, _ := a.do(http.MethodPost, "/api/v1/auth/logout", nil)
	if status != http.StatusOK {
		a.t.Fatalf("logout: status %d", status)
	}
}

// dataField unmarshals the "data" envelope field into dst.
func dataField(t *testing.T, body []byte, dst any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (body: %s)", err, body)
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("unmarshal data: %v (data: %s)", err, envelope.Data)
	}
}

func nullLink(link string) sql.NullString {
	return sql.NullString{String: link, Valid: link != ""}
}

func slugifyForTest(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-':
			out = append(out, '-')
		}
	}
	return string(out)
}
