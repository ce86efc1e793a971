// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/spherelink/spherelink/internal/middleware"
)

// Routes returns the /api/v1 router. Session, CSRF, user loading and
// global rate limiting are applied by the caller around the whole mux.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Public endpoints.
	r.Group(func(r chi.Router) {
		r.With(h.protection.Middleware()).Post("/auth/login", h.Login)
		r.Post("/contact", h.SubmitContact)

		r.Get("/events", h.ListEvents)
		r.Get("/events/{slug}", h.GetEvent)
		r.Get("/events/{slug}/comments", h.ListComments)

		r.Get("/organizations", h.ListOrganizations)
		r.Get("/organizations/{id}", h.GetOrganization)
	})

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.sm))

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/session", h.Session)
		r.Post("/auth/token", h.Token)
		r.Post("/auth/refresh", h.Refresh)
		r.Put("/auth/password", h.ChangePassword)

		r.Get("/users/{id}/profile", h.GetUserProfile)

		r.Post("/events/{slug}/register", h.Register)
		r.Delete("/events/{slug}/register", h.Unregister)
		r.Get("/events/{slug}/ticket", h.Ticket)
		r.Post("/events/{slug}/comments", h.CreateComment)

		r.Get("/my/events", h.MyEvents)
		r.Get("/my/created-events", h.MyCreatedEvents)
		r.Get("/my/profile", h.GetProfile)
		r.Put("/my/profile", h.UpdateProfile)
		r.Post("/my/profile/photo", h.UploadProfilePhoto)
		r.Get("/my/notifications", h.ListNotifications)
		r.Get("/my/notifications/unread", h.UnreadNotificationCount)
		r.Post("/my/notifications/{id}/read", h.MarkNotificationRead)

		r.Post("/invitations/{token}/accept", h.AcceptInvitation)
		r.Post("/invitations/{token}/decline", h.DeclineInvitation)
	})

	// Staff endpoints. Event update/delete additionally check that the
	// caller created the event or outranks staff.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.sm))
		r.Use(middleware.RequireStaff())

		r.Post("/events", h.CreateEvent)
		r.Put("/events/{slug}", h.UpdateEvent)
		r.Delete("/events/{slug}", h.DeleteEvent)
		r.Post("/events/{slug}/image", h.UploadEventImage)
		r.Get("/events/{slug}/attendees", h.Attendees)
		r.Get("/events/{slug}/attendees.csv", h.AttendeesCSV)

		r.Get("/contact", h.ListContactMessages)
		r.Put("/contact/{id}", h.UpdateContactMessage)
	})

	// Organization administration. Per-organization permission checks
	// happen in the handlers since org_admin is scoped to one org.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.sm))

		r.Put("/organizations/{id}", h.UpdateOrganization)
		r.Post("/organizations/{id}/logo", h.UploadOrganizationLogo)
		r.Get("/organizations/{id}/members", h.ListMembers)
		r.Post("/organizations/{id}/members", h.AddMember)
		r.Put("/organizations/{id}/members/{userID}", h.UpdateMemberRole)
		r.Delete("/organizations/{id}/members/{userID}", h.RemoveMember)
		r.Get("/organizations/{id}/invitations", h.ListInvitations)
		r.Post("/organizations/{id}/invitations", h.CreateInvitation)
	})

	// Superuser endpoints.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.sm))
		r.Use(middleware.RequireSuperuser())

		r.Post("/organizations", h.CreateOrganization)
		r.Delete("/organizations/{id}", h.DeleteOrganization)

		r.Get("/users", h.ListUsers)
		r.Put("/users/{id}", h.UpdateUser)
		r.Delete("/users/{id}", h.DeleteUser)
	})

	return r
}
