// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
)

type notificationResponse struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Link      string `json:"link,omitempty"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func toNotificationResponse(n model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Link:      n.Link.String,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListNotifications handles GET /api/v1/my/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	notifications, err := h.queries.ListNotificationsByUser(r.Context(), user.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list notifications")
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}
	WriteSuccess(w, resp, nil)
}

// MarkNotificationRead handles POST /api/v1/my/notifications/{id}/read.
// The user scoping in the query keeps one user from touching another's
// notifications.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid notification ID", nil)
		return
	}

	affected, err := h.queries.MarkNotificationRead(r.Context(), id, user.ID)
	if err != nil {
		WriteInternalError(w, "Failed to update notification")
		return
	}
	if affected == 0 {
		WriteNotFound(w, "Notification not found")
		return
	}
	WriteSuccess(w, map[string]string{"message": "Notification marked as read"}, nil)
}

// UnreadNotificationCount handles GET /api/v1/my/notifications/unread.
func (h *Handler) UnreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	count, err := h.queries.CountUnreadNotifications(r.Context(), user.ID)
	if err != nil {
		WriteInternalError(w, "Failed to count notifications")
		return
	}
	WriteSuccess(w, map[string]int64{"unread": count}, nil)
}
