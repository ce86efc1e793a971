package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"

	"github.com/spherelink/spherelink/internal/model"
)

// requestWithUser builds a request whose context carries a user and role.
func requestWithUser(user model.User, role string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	ctx := context.WithValue(r.Context(), ContextKeyUser, user)
	ctx = context.WithValue(ctx, ContextKeyRole, role)
	return r.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_Unauthenticated(t *testing.T) {
	sm := scs.New()
	handler := sm.LoadAndSave(Auth(sm)(okHandler()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRequireRole_Hierarchy(t *testing.T) {
	testCases := []struct {
		name     string
		role     string
		minRole  string
		wantCode int
	}{
		{"member denied staff", model.RoleMember, model.RoleStaff, http.StatusForbidden},
		{"staff allowed staff", model.RoleStaff, model.RoleStaff, http.StatusOK},
		{"org admin allowed staff", model.RoleOrgAdmin, model.RoleStaff, http.StatusOK},
		{"staff denied org admin", model.RoleStaff, model.RoleOrgAdmin, http.StatusForbidden},
		{"member allowed member", model.RoleMember, model.RoleMember, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireRole(tc.minRole)(okHandler())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestWithUser(model.User{ID: 1, Username: "u"}, tc.role))

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireRole_SuperuserAlwaysPasses(t *testing.T) {
	handler := RequireRole(model.RoleOrgAdmin)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithUser(model.User{ID: 1, IsSuperuser: true}, model.RoleMember))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireRole_NoUser(t *testing.T) {
	handler := RequireRole(model.RoleMember)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireSuperuser(t *testing.T) {
	handler := RequireSuperuser()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithUser(model.User{ID: 1, IsStaff: true}, model.RoleStaff))
	if rec.Code != http.StatusForbidden {
		t.Errorf("staff status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithUser(model.User{ID: 1, IsSuperuser: true}, model.RoleSuperAdmin))
	if rec.Code != http.StatusOK {
		t.Errorf("superuser status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGetUser_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if GetUser(r) != nil {
		t.Error("GetUser should return nil without context user")
	}
	if GetUserID(r) != 0 {
		t.Error("GetUserID should return 0 without context user")
	}
}
