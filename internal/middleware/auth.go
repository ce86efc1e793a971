// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, rate limiting, and request context handling.
package middleware

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for user data.
const (
	ContextKeyUser ContextKey = "user"
	ContextKeyRole ContextKey = "role"
)

// Session keys for storing user data.
const (
	SessionKeyUserID = "user_id"
)

// Auth creates middleware that requires an authenticated session.
// API routes get a JSON 401 instead of a redirect.
func Auth(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sm.GetInt64(r.Context(), SessionKeyUserID)
			if userID == 0 && GetUser(r) == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoadUser creates middleware that loads the session user and their active
// organization role into the request context. Requests without a session
// pass through untouched, so this composes with JWTAuth: whichever ran
// first wins.
func LoadUser(sm *scs.SessionManager, db *sql.DB) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUser(r) != nil {
				next.ServeHTTP(w, r)
				return
			}

			userID := sm.GetInt64(r.Context(), SessionKeyUserID)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := queries.GetUserByID(r.Context(), userID)
			if err != nil || !user.IsActive {
				// Stale session - clear it and continue unauthenticated.
				_ = sm.Destroy(r.Context())
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), queries, user)))
		})
	}
}

// withUser stores the user and their resolved role in the context.
func withUser(ctx context.Context, queries *store.Queries, user model.User) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUser, user)

	role := model.RoleMember
	if user.IsSuperuser {
		role = model.RoleSuperAdmin
	} else if ur, err := queries.GetActiveRoleForUser(ctx, user.ID); err == nil {
		role = ur.Role
	} else if user.IsStaff {
		role = model.RoleStaff
	}
	return context.WithValue(ctx, ContextKeyRole, role)
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *model.User {
	user, ok := r.Context().Value(ContextKeyUser).(model.User)
	if !ok {
		return nil
	}
	return &user
}

// GetUserID returns the current user's ID from context, or 0 if not found.
// Safe to use in logging where a zero-value is acceptable.
func GetUserID(r *http.Request) int64 {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return 0
}

// GetRole returns the current user's resolved role, or empty string.
func GetRole(r *http.Request) string {
	role, ok := r.Context().Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// RequireRole creates middleware that requires a minimum role. Roles are
// hierarchical: super_admin > org_admin > staff > member. Superusers always
// pass. For example, RequireRole(model.RoleStaff) allows staff, org admins,
// and super admins.
func RequireRole(minRole string) func(http.Handler) http.Handler {
	minLevel := model.RoleLevel(minRole)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}

			if user.IsSuperuser {
				next.ServeHTTP(w, r)
				return
			}

			if model.RoleLevel(GetRole(r)) < minLevel {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", user.ID,
					"user_role", GetRole(r),
					"required_role", minRole,
					"remote_addr", r.RemoteAddr,
				)
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Insufficient permissions", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff creates middleware that requires at least staff role.
func RequireStaff() func(http.Handler) http.Handler {
	return RequireRole(model.RoleStaff)
}

// RequireSuperuser creates middleware that requires a superuser account.
func RequireSuperuser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			if !user.IsSuperuser {
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Superuser access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
