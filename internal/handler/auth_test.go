package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/spherelink/spherelink/internal/store"
)

func TestLogin_Success(t *testing.T) {
	app := newTestApp(t)
	app.createUser("alice", false, false)

	status, body := app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "alice", "password": testPassword})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", status, body)
	}

	var resp struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Role string `json:"role"`
	}
	dataField(t, body, &resp)
	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want alice", resp.User.Username)
	}
	if resp.Role != "member" {
		t.Errorf("role = %q, want member", resp.Role)
	}

	// The session cookie should now resolve /auth/session.
	status, _ = app.do(http.MethodGet, "/api/v1/auth/session", nil)
	if status != http.StatusOK {
		t.Errorf("session after login: status = %d, want 200", status)
	}
}

func TestLogin_UsernameIsCaseInsensitive(t *testing.T) {
	app := newTestApp(t)
	app.createUser("bob", false, false)

	status, _ := app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "  BOB ", "password": testPassword})
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.createUser("carol", false, false)

	status, _ := app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "carol", "password": "not-the-password"})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	app := newTestApp(t)

	status, _ := app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "nobody", "password": testPassword})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser("dave", false, false)

	err := app.queries.UpdateUser(context.Background(), store.UpdateUserParams{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsStaff:   false,
		IsActive:  false,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	status, _ := app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "dave", "password": testPassword})
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
}

func TestLogout_EndsSession(t *testing.T) {
	app := newTestApp(t)
	app.createUser("erin", false, false)
	app.login("erin")
	app.logout()

	status, _ := app.do(http.MethodGet, "/api/v1/auth/session", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("session after logout: status = %d, want 401", status)
	}
}

func TestSession_RequiresAuth(t *testing.T) {
	app := newTestApp(t)

	status, _ := app.do(http.MethodGet, "/api/v1/auth/session", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestToken_ReturnsBearerToken(t *testing.T) {
	app := newTestApp(t)
	app.createUser("frank", false, false)
	app.login("frank")

	status, body := app.do(http.MethodPost, "/api/v1/auth/token", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", status, body)
	}

	var resp struct {
		Token string `json:"token"`
	}
	dataField(t, body, &resp)
	if resp.Token == "" {
		t.Error("token is empty")
	}
}

func TestRefresh_RenewsSessionAndToken(t *testing.T) {
	app := newTestApp(t)
	app.createUser("ivan", false, false)
	app.login("ivan")

	status, body := app.do(http.MethodPost, "/api/v1/auth/refresh", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", status, body)
	}

	var resp struct {
		Token string `json:"token"`
	}
	dataField(t, body, &resp)
	if resp.Token == "" {
		t.Error("token is empty")
	}

	// The rotated session cookie still authenticates.
	status, _ = app.do(http.MethodGet, "/api/v1/auth/session", nil)
	if status != http.StatusOK {
		t.Errorf("session after refresh: status = %d, want 200", status)
	}
}

func TestRefresh_RequiresAuth(t *testing.T) {
	app := newTestApp(t)

	status, _ := app.do(http.MethodPost, "/api/v1/auth/refresh", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestChangePassword(t *testing.T) {
	app := newTestApp(t)
	app.createUser("grace", false, false)
	app.login("grace")

	status, body := app.do(http.MethodPut, "/api/v1/auth/password", map[string]string{
		"current_password": testPassword,
		"new_password":     "an-entirely-new-secret",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", status, body)
	}

	app.logout()

	// Old password no longer works.
	status, _ = app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "grace", "password": testPassword})
	if status != http.StatusUnauthorized {
		t.Errorf("login with old password: status = %d, want 401", status)
	}

	// New password does.
	status, _ = app.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "grace", "password": "an-entirely-new-secret"})
	if status != http.StatusOK {
		t.Errorf("login with new password: status = %d, want 200", status)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	app := newTestApp(t)
	app.createUser("heidi", false, false)
	app.login("heidi")

	status, _ := app.do(http.MethodPut, "/api/v1/auth/password", map[string]string{
		"current_password": "wrong",
		"new_password":     "an-entirely-new-secret",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}
