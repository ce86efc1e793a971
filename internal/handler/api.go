// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the REST API handlers for SphereLink.
package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/spherelink/spherelink/internal/cache"
	"github.com/spherelink/spherelink/internal/config"
	"github.com/spherelink/spherelink/internal/imaging"
	"github.com/spherelink/spherelink/internal/mailer"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/service"
	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/version"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db         *sql.DB
	queries    *store.Queries
	cfg        config.Config
	sm         *scs.SessionManager
	cache      cache.Cache
	mailer     *mailer.Mailer
	audit      *service.AuditService
	images     *imaging.Processor
	protection *middleware.LoginProtection
	version    version.Info
	startTime  time.Time
}

// New creates the API handler with its dependencies.
func New(db *sql.DB, cfg config.Config, sm *scs.SessionManager, c cache.Cache, m *mailer.Mailer, ver version.Info) *Handler {
	return &Handler{
		db:         db,
		queries:    store.New(db),
		cfg:        cfg,
		sm:         sm,
		cache:      c,
		mailer:     m,
		audit:      service.NewAuditService(db),
		images:     imaging.NewProcessor(cfg.UploadsDir),
		protection: middleware.NewLoginProtection(cfg),
		version:    ver,
		startTime:  time.Now(),
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 response with per-field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// decodeJSON parses the request body into dst. Returns false after
// writing a 400 response if the body is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid request body: "+err.Error(), nil)
		return false
	}
	return true
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// parsePagination reads page/per_page query params with sane bounds.
func parsePagination(r *http.Request) (page, perPage int) {
	page = 1
	perPage = defaultPerPage

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perPage = min(n, maxPerPage)
		}
	}
	return page, perPage
}

// buildMeta computes pagination metadata for a listing.
func buildMeta(total int64, page, perPage int) *Meta {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &Meta{Total: total, Page: page, PerPage: perPage, Pages: pages}
}

// LoginProtection exposes the login rate limiter for route wiring.
func (h *Handler) LoginProtection() *middleware.LoginProtection {
	return h.protection
}
