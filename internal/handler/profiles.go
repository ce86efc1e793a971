// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spherelink/spherelink/internal/content"
	"github.com/spherelink/spherelink/internal/imaging"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

type profileResponse struct {
	User      userResponse `json:"user"`
	Bio       string       `json:"bio,omitempty"`
	PhotoPath string       `json:"photo_path,omitempty"`
}

// GetProfile handles GET /api/v1/my/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	resp := profileResponse{User: toUserResponse(*user)}
	if profile, err := h.queries.GetProfileByUserID(r.Context(), user.ID); err == nil {
		resp.Bio = profile.Bio.String
		resp.PhotoPath = profile.PhotoPath.String
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to load profile")
		return
	}
	WriteSuccess(w, resp, nil)
}

// GetUserProfile handles GET /api/v1/users/{id}/profile: another
// user's public profile, visible to any authenticated user.
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	target, err := h.queries.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to load profile")
		}
		return
	}

	resp := profileResponse{User: toUserResponse(target)}
	if profile, err := h.queries.GetProfileByUserID(r.Context(), target.ID); err == nil {
		resp.Bio = profile.Bio.String
		resp.PhotoPath = profile.PhotoPath.String
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to load profile")
		return
	}
	WriteSuccess(w, resp, nil)
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
}

// UpdateProfile handles PUT /api/v1/my/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		req.Email = user.Email
	}

	if err := h.queries.UpdateUser(r.Context(), store.UpdateUserParams{
		ID:        user.ID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsStaff:   user.IsStaff,
		IsActive:  user.IsActive,
		UpdatedAt: time.Now(),
	}); err != nil {
		WriteInternalError(w, "Failed to update profile")
		return
	}

	bio := content.SanitizeText(req.Bio)
	if _, err := h.queries.GetProfileByUserID(r.Context(), user.ID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			WriteInternalError(w, "Failed to update profile")
			return
		}
		if _, err := h.queries.CreateProfile(r.Context(), store.CreateProfileParams{
			UserID: user.ID,
			Bio:    sql.NullString{String: bio, Valid: bio != ""},
		}); err != nil {
			WriteInternalError(w, "Failed to update profile")
			return
		}
	} else if err := h.queries.UpdateProfileBio(r.Context(), user.ID,
		sql.NullString{String: bio, Valid: bio != ""}); err != nil {
		WriteInternalError(w, "Failed to update profile")
		return
	}

	_ = h.audit.LogUserAction(r.Context(), model.AuditLevelInfo, "profile updated",
		&user.ID, middleware.ClientIP(r), map[string]any{"username": user.Username})

	WriteSuccess(w, map[string]string{"message": "Profile updated"}, nil)
}

// UploadProfilePhoto handles POST /api/v1/my/profile/photo.
func (h *Handler) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	file, _, err := r.FormFile("photo")
	if err != nil {
		WriteBadRequest(w, "Missing photo file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.images.Process(file, imaging.KindProfile, strconv.FormatInt(user.ID, 10))
	if err != nil {
		WriteValidationError(w, map[string]string{"photo": err.Error()})
		return
	}

	if _, err := h.queries.GetProfileByUserID(r.Context(), user.ID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			WriteInternalError(w, "Failed to save photo")
			return
		}
		if _, err := h.queries.CreateProfile(r.Context(), store.CreateProfileParams{UserID: user.ID}); err != nil {
			WriteInternalError(w, "Failed to save photo")
			return
		}
	}
	if err := h.queries.UpdateProfilePhoto(r.Context(), user.ID,
		sql.NullString{String: result.Path, Valid: true}); err != nil {
		WriteInternalError(w, "Failed to save photo")
		return
	}

	WriteSuccess(w, map[string]string{"photo_path": result.Path, "thumb_path": result.ThumbPath}, nil)
}

// ListUsers handles GET /api/v1/users. Superuser only.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.queries.ListUsers(r.Context())
	if err != nil {
		WriteInternalError(w, "Failed to list users")
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	WriteSuccess(w, resp, nil)
}

type updateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
	IsActive  bool   `json:"is_active"`
}

// UpdateUser handles PUT /api/v1/users/{id}. Superuser only: used to
// deactivate accounts or grant site-wide staff.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	target, err := h.queries.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to update user")
		}
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		req.Email = target.Email
	}

	if err := h.queries.UpdateUser(r.Context(), store.UpdateUserParams{
		ID:        target.ID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsStaff:   req.IsStaff,
		IsActive:  req.IsActive,
		UpdatedAt: time.Now(),
	}); err != nil {
		WriteInternalError(w, "Failed to update user")
		return
	}

	_ = h.audit.LogUserAction(r.Context(), model.AuditLevelInfo, "user updated by admin",
		&actor.ID, middleware.ClientIP(r),
		map[string]any{"target": target.Username, "is_active": req.IsActive, "is_staff": req.IsStaff})

	updated, err := h.queries.GetUserByID(r.Context(), target.ID)
	if err != nil {
		WriteInternalError(w, "Failed to update user")
		return
	}
	WriteSuccess(w, toUserResponse(updated), nil)
}

// DeleteUser handles DELETE /api/v1/users/{id}. Superuser only.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}
	if id == actor.ID {
		WriteConflict(w, "You cannot delete your own account")
		return
	}

	target, err := h.queries.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to delete user")
		}
		return
	}

	if err := h.queries.DeleteUser(r.Context(), target.ID); err != nil {
		WriteInternalError(w, "Failed to delete user")
		return
	}

	_ = h.audit.LogUserAction(r.Context(), model.AuditLevelWarning, "user deleted",
		&actor.ID, middleware.ClientIP(r), map[string]any{"target": target.Username})

	WriteSuccess(w, map[string]string{"message": "User deleted"}, nil)
}
