// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spherelink/spherelink/internal/auth"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User userResponse `json:"user"`
	Role string       `json:"role"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsSuperuser bool   `json:"is_superuser"`
	IsStaff     bool   `json:"is_staff"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		IsStaff:     u.IsStaff,
	}
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	if req.Username == "" || req.Password == "" {
		WriteValidationError(w, map[string]string{"username": "Username and password are required"})
		return
	}

	if locked, remaining := h.protection.IsAccountLocked(req.Username); locked {
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("Account temporarily locked. Try again in %s.", remaining.Round(time.Second)), nil)
		return
	}

	user, err := h.queries.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			WriteInternalError(w, "Login failed")
			return
		}
		// Burn a hash check so missing and wrong-password take similar time.
		_, _ = auth.CheckPassword(req.Password, auth.DummyHash)
		h.failLogin(w, r, req.Username, nil)
		return
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		h.failLogin(w, r, req.Username, &user.ID)
		return
	}

	if !user.IsActive {
		_ = h.audit.LogLogin(r, req.Username, &user.ID, false)
		WriteForbidden(w, "This account has been deactivated")
		return
	}

	h.protection.RecordSuccessfulLogin(req.Username)

	// Rotate the session token on privilege change.
	if err := h.sm.RenewToken(r.Context()); err != nil {
		WriteInternalError(w, "Login failed")
		return
	}
	h.sm.Put(r.Context(), middleware.SessionKeyUserID, user.ID)

	if err := h.queries.UpdateUserLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		slog.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	_ = h.audit.LogLogin(r, req.Username, &user.ID, true)

	role := h.resolveRole(r, user)
	WriteSuccess(w, sessionResponse{User: toUserResponse(user), Role: role}, nil)
}

// failLogin records a failed attempt and writes a uniform 401.
func (h *Handler) failLogin(w http.ResponseWriter, r *http.Request, username string, userID *int64) {
	_ = h.audit.LogLogin(r, username, userID, false)

	if locked, duration := h.protection.RecordFailedAttempt(username); locked {
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("Too many failed attempts. Account locked for %s.", duration.Round(time.Second)), nil)
		return
	}

	WriteUnauthorized(w, "Invalid username or password")
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	if err := h.sm.Destroy(r.Context()); err != nil {
		WriteInternalError(w, "Logout failed")
		return
	}

	if user != nil {
		_ = h.audit.LogAuthEvent(r.Context(), model.AuditLevelInfo, "user logged out",
			&user.ID, middleware.ClientIP(r), map[string]any{"username": user.Username})
	}

	WriteSuccess(w, map[string]string{"message": "Logged out"}, nil)
}

// Session handles GET /api/v1/auth/session: the current user and role.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}
	WriteSuccess(w, sessionResponse{
		User: toUserResponse(*user),
		Role: middleware.GetRole(r),
	}, nil)
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token handles POST /api/v1/auth/token: issues a bearer token for the
// authenticated session, for scripted API access.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}

	token, err := middleware.IssueToken(h.cfg.TokenSecret(), *user, middleware.DefaultTokenTTL)
	if err != nil {
		WriteInternalError(w, "Failed to issue token")
		return
	}

	_ = h.audit.LogAuthEvent(r.Context(), model.AuditLevelInfo, "api token issued",
		&user.ID, middleware.ClientIP(r), map[string]any{"username": user.Username})

	WriteSuccess(w, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(middleware.DefaultTokenTTL),
	}, nil)
}

// Refresh handles POST /api/v1/auth/refresh: rotates the session token
// and issues a fresh bearer token so long-lived clients can renew
// before expiry.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.sm.RenewToken(r.Context()); err != nil {
		WriteInternalError(w, "Failed to refresh session")
		return
	}

	token, err := middleware.IssueToken(h.cfg.TokenSecret(), *user, middleware.DefaultTokenTTL)
	if err != nil {
		WriteInternalError(w, "Failed to issue token")
		return
	}

	WriteSuccess(w, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(middleware.DefaultTokenTTL),
	}, nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles POST /api/v1/auth/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.NewPassword) < 8 {
		WriteValidationError(w, map[string]string{"new_password": "Password must be at least 8 characters"})
		return
	}

	ok, err := auth.CheckPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil || !ok {
		WriteUnauthorized(w, "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		WriteInternalError(w, "Failed to change password")
		return
	}

	if err := h.queries.UpdateUserPassword(r.Context(), store.UpdateUserPasswordParams{
		ID:           user.ID,
		PasswordHash: hash,
		UpdatedAt:    time.Now(),
	}); err != nil {
		WriteInternalError(w, "Failed to change password")
		return
	}

	// Rotate the session after a credential change.
	if err := h.sm.RenewToken(r.Context()); err != nil {
		slog.Warn("failed to renew session after password change", "user_id", user.ID, "error", err)
	}

	_ = h.audit.LogAuthEvent(r.Context(), model.AuditLevelInfo, "password changed",
		&user.ID, middleware.ClientIP(r), map[string]any{"username": user.Username})

	WriteSuccess(w, map[string]string{"message": "Password changed"}, nil)
}

// resolveRole returns the effective role for a freshly authenticated
// user, before the context middleware has run for this request.
func (h *Handler) resolveRole(r *http.Request, user model.User) string {
	if user.IsSuperuser {
		return model.RoleSuperAdmin
	}
	if role, err := h.queries.GetActiveRoleForUser(r.Context(), user.ID); err == nil {
		return role.Role
	}
	if user.IsStaff {
		return model.RoleStaff
	}
	return model.RoleMember
}
