// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spherelink/spherelink/internal/content"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

type contactRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type contactResponse struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toContactResponse(m model.ContactMessage) contactResponse {
	return contactResponse{
		ID:         m.ID,
		Email:      m.Email,
		Subject:    m.Subject,
		Message:    m.Message,
		Status:     m.Status,
		AdminNotes: m.AdminNotes.String,
		CreatedAt:  m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// SubmitContact handles POST /api/v1/contact. Public endpoint; input is
// sanitized before storage.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Subject = content.SanitizeText(req.Subject)
	req.Message = content.SanitizeText(req.Message)

	fieldErrors := make(map[string]string)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		fieldErrors["email"] = "A valid email address is required"
	}
	if req.Subject == "" {
		fieldErrors["subject"] = "Subject is required"
	}
	if req.Message == "" {
		fieldErrors["message"] = "Message is required"
	}
	if len(req.Message) > 5000 {
		fieldErrors["message"] = "Message must be 5000 characters or fewer"
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}

	now := time.Now()
	msg, err := h.queries.CreateContactMessage(r.Context(), store.CreateContactMessageParams{
		Email:     req.Email,
		Subject:   req.Subject,
		Message:   req.Message,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		WriteInternalError(w, "Failed to submit message")
		return
	}

	_ = h.audit.LogSystemEvent(r.Context(), model.AuditLevelInfo, "contact message received",
		map[string]any{"id": msg.ID, "email": msg.Email})

	if h.mailer.Enabled() {
		go func(m model.ContactMessage) {
			_ = h.mailer.SendContactNotice(m)
		}(msg)
	}

	WriteCreated(w, map[string]any{"id": msg.ID, "message": "Thank you, we will be in touch"})
}

// ListContactMessages handles GET /api/v1/contact. Staff only; supports
// an optional ?status= filter.
func (h *Handler) ListContactMessages(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidContactStatus(status) {
		WriteBadRequest(w, "Invalid status filter", nil)
		return
	}

	messages, err := h.queries.ListContactMessages(r.Context(), status)
	if err != nil {
		WriteInternalError(w, "Failed to list messages")
		return
	}

	resp := make([]contactResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, toContactResponse(m))
	}
	WriteSuccess(w, resp, nil)
}

type contactUpdateRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`
}

// UpdateContactMessage handles PUT /api/v1/contact/{id}. Staff only.
func (h *Handler) UpdateContactMessage(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid message ID", nil)
		return
	}

	msg, err := h.queries.GetContactMessageByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Message not found")
		} else {
			WriteInternalError(w, "Failed to update message")
		}
		return
	}

	var req contactUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = msg.Status
	}
	if !model.ValidContactStatus(req.Status) {
		WriteValidationError(w, map[string]string{"status": "Invalid status"})
		return
	}

	notes := content.SanitizeText(req.AdminNotes)
	if err := h.queries.UpdateContactMessage(r.Context(), store.UpdateContactMessageParams{
		ID:         msg.ID,
		Status:     req.Status,
		AdminNotes: sql.NullString{String: notes, Valid: notes != ""},
		UpdatedAt:  time.Now(),
	}); err != nil {
		WriteInternalError(w, "Failed to update message")
		return
	}

	_ = h.audit.LogSystemEvent(r.Context(), model.AuditLevelInfo, "contact message updated",
		map[string]any{"id": msg.ID, "status": req.Status, "updated_by": actor.Username})

	updated, err := h.queries.GetContactMessageByID(r.Context(), msg.ID)
	if err != nil {
		WriteInternalError(w, "Failed to update message")
		return
	}
	WriteSuccess(w, toContactResponse(updated), nil)
}
