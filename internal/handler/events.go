// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/spherelink/spherelink/internal/cache"
	"github.com/spherelink/spherelink/internal/content"
	"github.com/spherelink/spherelink/internal/imaging"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/util"
)

// eventResponse is the API shape of an event, with registration stats
// and the rendered description.
type eventResponse struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	DescriptionHTML string    `json:"description_html,omitempty"`
	Date            time.Time `json:"date"`
	Location        string    `json:"location"`
	ImagePath       string    `json:"image_path,omitempty"`
	Duration        int64     `json:"duration"`
	Requirements    string    `json:"requirements,omitempty"`
	EventType       string    `json:"event_type"`
	IsOfficial      bool      `json:"is_official"`
	MaxCapacity     int64     `json:"max_capacity"`
	Registered      int64     `json:"registered"`
	AvailableSpots  int64     `json:"available_spots"`
	IsPast          bool      `json:"is_past"`
	OrganizationID  *int64    `json:"organization_id,omitempty"`
	CreatedBy       int64     `json:"created_by"`
}

func (h *Handler) toEventResponse(r *http.Request, e model.Event, withBody bool) eventResponse {
	registered, err := h.queries.CountRegistrationsByEvent(r.Context(), e.ID)
	if err != nil {
		slog.Warn("failed to count registrations", "event_id", e.ID, "error", err)
	}

	resp := eventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Slug:           e.Slug,
		Description:    e.Description,
		Date:           e.Date,
		Location:       e.Location,
		Duration:       e.Duration,
		Requirements:   e.Requirements,
		EventType:      e.EventType,
		IsOfficial:     e.IsOfficial,
		MaxCapacity:    e.MaxCapacity,
		Registered:     registered,
		AvailableSpots: e.AvailableSpots(registered),
		IsPast:         e.IsPast(),
		CreatedBy:      e.CreatedBy,
	}
	if e.ImagePath.Valid {
		resp.ImagePath = e.ImagePath.String
	}
	if e.OrganizationID.Valid {
		resp.OrganizationID = &e.OrganizationID.Int64
	}
	if withBody {
		if html, err := content.RenderMarkdown(e.Description); err == nil {
			resp.DescriptionHTML = html
		}
	}
	return resp
}

// ListEvents handles GET /api/v1/events with filtering and pagination.
// Listings are served from cache when possible.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)
	q := r.URL.Query()

	search := q.Get("q")
	if search == "" {
		search = q.Get("search")
	}
	arg := store.ListEventsParams{
		All:          true,
		Search:       strings.TrimSpace(search),
		EventType:    q.Get("type"),
		UpcomingOnly: q.Get("upcoming") == "true",
		Limit:        int64(perPage),
		Offset:       int64((page - 1) * perPage),
	}
	if orgParam := q.Get("organization_id"); orgParam != "" {
		orgID, err := strconv.ParseInt(orgParam, 10, 64)
		if err != nil {
			WriteBadRequest(w, "Invalid organization_id", nil)
			return
		}
		arg.All = false
		arg.OrganizationID = sql.NullInt64{Int64: orgID, Valid: true}
	}
	if arg.EventType != "" && !model.ValidEventType(arg.EventType) {
		WriteBadRequest(w, "Unknown event type", nil)
		return
	}

	if events, total, err := cache.GetEventList(r.Context(), h.cache, arg); err == nil {
		WriteSuccess(w, h.toEventResponses(r, events), buildMeta(total, page, perPage))
		return
	}

	events, err := h.queries.ListEvents(r.Context(), arg)
	if err != nil {
		WriteInternalError(w, "Failed to list events")
		return
	}
	total, err := h.queries.CountEvents(r.Context(), arg)
	if err != nil {
		WriteInternalError(w, "Failed to list events")
		return
	}

	if err := cache.SetEventList(r.Context(), h.cache, arg, events, total); err != nil {
		slog.Warn("failed to cache event listing", "error", err)
	}

	WriteSuccess(w, h.toEventResponses(r, events), buildMeta(total, page, perPage))
}

func (h *Handler) toEventResponses(r *http.Request, events []model.Event) []eventResponse {
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, h.toEventResponse(r, e, false))
	}
	return resp
}

// GetEvent handles GET /api/v1/events/{slug}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, h.toEventResponse(r, event, true), nil)
}

type eventRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Date           time.Time `json:"date"`
	Location       string    `json:"location"`
	Duration       int64     `json:"duration"`
	Requirements   string    `json:"requirements"`
	EventType      string    `json:"event_type"`
	IsOfficial     bool      `json:"is_official"`
	MaxCapacity    int64     `json:"max_capacity"`
	OrganizationID *int64    `json:"organization_id"`
}

func (req *eventRequest) validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(req.Title) == "" {
		errs["title"] = "Title is required"
	}
	if req.Date.IsZero() {
		errs["date"] = "Date is required"
	} else if req.Date.Before(time.Now()) {
		errs["date"] = "Date must be in the future"
	}
	if req.MaxCapacity <= 0 {
		errs["max_capacity"] = "Capacity must be positive"
	}
	if !model.ValidEventType(req.EventType) {
		errs["event_type"] = "Unknown event type"
	}
	if req.Duration <= 0 {
		req.Duration = 60
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// CreateEvent handles POST /api/v1/events. Requires staff.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.validate(); errs != nil {
		WriteValidationError(w, errs)
		return
	}

	slug := util.Slugify(req.Title)
	if _, err := h.queries.GetEventBySlug(r.Context(), slug); err == nil {
		WriteValidationError(w, map[string]string{"title": "An event with this title already exists"})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to create event")
		return
	}

	now := time.Now()
	event, err := h.queries.CreateEvent(r.Context(), store.CreateEventParams{
		Title:          strings.TrimSpace(req.Title),
		Slug:           slug,
		Description:    req.Description,
		Date:           req.Date,
		Location:       strings.TrimSpace(req.Location),
		Duration:       req.Duration,
		Requirements:   req.Requirements,
		EventType:      req.EventType,
		IsOfficial:     req.IsOfficial,
		MaxCapacity:    req.MaxCapacity,
		OrganizationID: util.NullInt64FromPtr(req.OrganizationID),
		CreatedBy:      user.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		WriteInternalError(w, "Failed to create event")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogEventAction(r.Context(), model.AuditLevelInfo, "event created",
		&user.ID, middleware.ClientIP(r), map[string]any{"event": event.Slug})

	WriteCreated(w, h.toEventResponse(r, event, false))
}

// UpdateEvent handles PUT /api/v1/events/{slug}. Creator or staff only.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)
	if !h.canManageEvent(r, event) {
		WriteForbidden(w, "Only the event creator or staff can modify this event")
		return
	}

	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.validate(); errs != nil {
		WriteValidationError(w, errs)
		return
	}

	if err := h.queries.UpdateEvent(r.Context(), store.UpdateEventParams{
		ID:             event.ID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Date:           req.Date,
		Location:       strings.TrimSpace(req.Location),
		Duration:       req.Duration,
		Requirements:   req.Requirements,
		EventType:      req.EventType,
		IsOfficial:     req.IsOfficial,
		MaxCapacity:    req.MaxCapacity,
		OrganizationID: util.NullInt64FromPtr(req.OrganizationID),
		UpdatedAt:      time.Now(),
	}); err != nil {
		WriteInternalError(w, "Failed to update event")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogEventAction(r.Context(), model.AuditLevelInfo, "event updated",
		&user.ID, middleware.ClientIP(r), map[string]any{"event": event.Slug})

	updated, err := h.queries.GetEventByID(r.Context(), event.ID)
	if err != nil {
		WriteInternalError(w, "Failed to update event")
		return
	}
	WriteSuccess(w, h.toEventResponse(r, updated, false), nil)
}

// DeleteEvent handles DELETE /api/v1/events/{slug}. Creator or staff only.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)
	if !h.canManageEvent(r, event) {
		WriteForbidden(w, "Only the event creator or staff can delete this event")
		return
	}

	if err := h.queries.DeleteEvent(r.Context(), event.ID); err != nil {
		WriteInternalError(w, "Failed to delete event")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogEventAction(r.Context(), model.AuditLevelWarning, "event deleted",
		&user.ID, middleware.ClientIP(r), map[string]any{"event": event.Slug})

	WriteSuccess(w, map[string]string{"message": "Event deleted"}, nil)
}

// Register handles POST /api/v1/events/{slug}/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)

	if event.IsPast() {
		WriteConflict(w, "This event has already taken place")
		return
	}

	registered, err := h.queries.CountRegistrationsByEvent(r.Context(), event.ID)
	if err != nil {
		WriteInternalError(w, "Failed to register")
		return
	}
	if event.IsFull(registered) {
		WriteConflict(w, "This event is full")
		return
	}

	if _, err := h.queries.GetRegistration(r.Context(), user.ID, event.ID); err == nil {
		WriteConflict(w, "You are already registered for this event")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to register")
		return
	}

	reg, err := h.queries.CreateRegistration(r.Context(), user.ID, event.ID, time.Now())
	if err != nil {
		WriteInternalError(w, "Failed to register")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogEventAction(r.Context(), model.AuditLevelInfo, "event registration",
		&user.ID, middleware.ClientIP(r), map[string]any{"event": event.Slug})

	if h.mailer.Enabled() {
		go func(u model.User, e model.Event) {
			if err := h.mailer.SendRegistrationConfirmation(u, e); err != nil {
				slog.Warn("failed to send registration mail", "event", e.Slug, "error", err)
			}
		}(*user, event)
	}

	if _, err := h.queries.CreateNotification(r.Context(), user.ID,
		fmt.Sprintf("You are registered for %s", event.Title),
		sql.NullString{String: "/events/" + event.Slug, Valid: true}, time.Now()); err != nil {
		slog.Warn("failed to create registration notification", "error", err)
	}

	WriteCreated(w, reg)
}

// Unregister handles DELETE /api/v1/events/{slug}/register.
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)

	if event.IsPast() {
		WriteConflict(w, "Cannot cancel a registration for a past event")
		return
	}

	deleted, err := h.queries.DeleteRegistration(r.Context(), user.ID, event.ID)
	if err != nil {
		WriteInternalError(w, "Failed to cancel registration")
		return
	}
	if deleted == 0 {
		WriteNotFound(w, "You are not registered for this event")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogEventAction(r.Context(), model.AuditLevelInfo, "event registration cancelled",
		&user.ID, middleware.ClientIP(r), map[string]any{"event": event.Slug})

	if h.mailer.Enabled() {
		go func(u model.User, e model.Event) {
			if err := h.mailer.SendRegistrationCancellation(u, e); err != nil {
				slog.Warn("failed to send cancellation mail", "event", e.Slug, "error", err)
			}
		}(*user, event)
	}

	WriteSuccess(w, map[string]string{"message": "Registration cancelled"}, nil)
}

// MyEvents handles GET /api/v1/my/events: events the user registered for.
func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	events, err := h.queries.ListEventsRegisteredBy(r.Context(), user.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list events")
		return
	}
	WriteSuccess(w, h.toEventResponses(r, events), nil)
}

// MyCreatedEvents handles GET /api/v1/my/created-events.
func (h *Handler) MyCreatedEvents(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	events, err := h.queries.ListEventsByCreator(r.Context(), user.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list events")
		return
	}
	WriteSuccess(w, h.toEventResponses(r, events), nil)
}

// Attendees handles GET /api/v1/events/{slug}/attendees. The roster is
// visible to the event creator and staff only.
func (h *Handler) Attendees(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	if !h.canManageEvent(r, event) {
		WriteForbidden(w, "Only the event creator or staff can view the roster")
		return
	}

	attendees, err := h.queries.ListAttendeesByEvent(r.Context(), event.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list attendees")
		return
	}
	WriteSuccess(w, attendees, nil)
}

// AttendeesCSV handles GET /api/v1/events/{slug}/attendees.csv.
func (h *Handler) AttendeesCSV(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	if !h.canManageEvent(r, event) {
		WriteForbidden(w, "Only the event creator or staff can export the roster")
		return
	}

	attendees, err := h.queries.ListAttendeesByEvent(r.Context(), event.ID)
	if err != nil {
		WriteInternalError(w, "Failed to export attendees")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", event.Slug+"-attendees.csv"))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"username", "name", "email", "registered_at"})
	for _, a := range attendees {
		_ = cw.Write([]string{
			a.Username,
			a.FullName(),
			a.Email,
			a.RegisteredAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

// Ticket handles GET /api/v1/events/{slug}/ticket: a QR code PNG
// encoding the registration, shown at the door.
func (h *Handler) Ticket(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)

	reg, err := h.queries.GetRegistration(r.Context(), user.ID, event.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "You are not registered for this event")
		} else {
			WriteInternalError(w, "Failed to generate ticket")
		}
		return
	}

	payload := fmt.Sprintf("spherelink:ticket:%d:%s:%s", reg.ID, event.Slug, user.Username)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		WriteInternalError(w, "Failed to generate ticket")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(png)
}

// UploadEventImage handles POST /api/v1/events/{slug}/image.
func (h *Handler) UploadEventImage(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)
	if !h.canManageEvent(r, event) {
		WriteForbidden(w, "Only the event creator or staff can change the image")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		WriteBadRequest(w, "Missing image file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.images.Process(file, imaging.KindEvent, strconv.FormatInt(event.ID, 10))
	if err != nil {
		WriteValidationError(w, map[string]string{"image": err.Error()})
		return
	}

	if err := h.queries.UpdateEventImage(r.Context(), event.ID,
		sql.NullString{String: result.Path, Valid: true}); err != nil {
		WriteInternalError(w, "Failed to save image")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogEventAction(r.Context(), model.AuditLevelInfo, "event image updated",
		&user.ID, middleware.ClientIP(r), map[string]any{"event": event.Slug})

	WriteSuccess(w, map[string]string{"image_path": result.Path, "thumb_path": result.ThumbPath}, nil)
}

type commentRequest struct {
	Body string `json:"body"`
}

// ListComments handles GET /api/v1/events/{slug}/comments.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}

	comments, err := h.queries.ListCommentsByEvent(r.Context(), event.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list comments")
		return
	}
	WriteSuccess(w, comments, nil)
}

// CreateComment handles POST /api/v1/events/{slug}/comments.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	event, ok := h.requireEventBySlug(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	body := content.SanitizeText(req.Body)
	if body == "" {
		WriteValidationError(w, map[string]string{"body": "Comment cannot be empty"})
		return
	}
	if len(body) > 2000 {
		WriteValidationError(w, map[string]string{"body": "Comment is too long"})
		return
	}

	comment, err := h.queries.CreateComment(r.Context(), event.ID, user.ID, body, time.Now())
	if err != nil {
		WriteInternalError(w, "Failed to create comment")
		return
	}
	WriteCreated(w, comment)
}

// requireEventBySlug fetches the event named in the URL, writing the
// error response on failure.
func (h *Handler) requireEventBySlug(w http.ResponseWriter, r *http.Request) (model.Event, bool) {
	slug := chi.URLParam(r, "slug")
	if !util.IsValidSlug(slug) {
		WriteBadRequest(w, "Invalid event slug", nil)
		return model.Event{}, false
	}

	event, err := h.queries.GetEventBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Event not found")
		} else {
			WriteInternalError(w, "Failed to retrieve event")
		}
		return model.Event{}, false
	}
	return event, true
}

// canManageEvent reports whether the requester may modify the event:
// its creator, or anyone with staff role or above.
func (h *Handler) canManageEvent(r *http.Request, event model.Event) bool {
	user := middleware.GetUser(r)
	if user == nil {
		return false
	}
	if event.CreatedBy == user.ID || user.IsSuperuser {
		return true
	}
	return model.RoleLevel(middleware.GetRole(r)) >= model.RoleLevel(model.RoleStaff)
}

func (h *Handler) invalidateEventCache(r *http.Request) {
	if err := cache.InvalidateEventLists(r.Context(), h.cache); err != nil {
		slog.Warn("failed to invalidate event cache", "error", err)
	}
}
