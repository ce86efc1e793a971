// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherelink/spherelink/internal/imaging"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/util"
)

// invitationTTL is how long a membership invitation stays redeemable.
const invitationTTL = 7 * 24 * time.Hour

// ListOrganizations handles GET /api/v1/organizations.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.queries.ListOrganizations(r.Context())
	if err != nil {
		WriteInternalError(w, "Failed to list organizations")
		return
	}
	WriteSuccess(w, orgs, nil)
}

// GetOrganization handles GET /api/v1/organizations/{id}.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, org, nil)
}

type organizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	IsActive    *bool  `json:"is_active"`
}

// CreateOrganization handles POST /api/v1/organizations. Superuser only.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var req organizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		WriteValidationError(w, map[string]string{"name": "Name is required"})
		return
	}

	if _, err := h.queries.GetOrganizationByName(r.Context(), req.Name); err == nil {
		WriteValidationError(w, map[string]string{"name": "An organization with this name already exists"})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to create organization")
		return
	}

	now := time.Now()
	org, err := h.queries.CreateOrganization(r.Context(), store.CreateOrganizationParams{
		Name:        req.Name,
		Slug:        util.Slugify(req.Name),
		Description: req.Description,
		Website:     req.Website,
		Address:     req.Address,
		Phone:       req.Phone,
		Email:       req.Email,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		WriteInternalError(w, "Failed to create organization")
		return
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelInfo, "organization created",
		&user.ID, middleware.ClientIP(r), map[string]any{"organization": org.Name})

	WriteCreated(w, org)
}

// UpdateOrganization handles PUT /api/v1/organizations/{id}. Org admin or above.
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	var req organizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		WriteValidationError(w, map[string]string{"name": "Name is required"})
		return
	}

	isActive := org.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	if err := h.queries.UpdateOrganization(r.Context(), store.UpdateOrganizationParams{
		ID:          org.ID,
		Name:        req.Name,
		Description: req.Description,
		Website:     req.Website,
		Address:     req.Address,
		Phone:       req.Phone,
		Email:       req.Email,
		IsActive:    isActive,
		UpdatedAt:   time.Now(),
	}); err != nil {
		WriteInternalError(w, "Failed to update organization")
		return
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelInfo, "organization updated",
		&user.ID, middleware.ClientIP(r), map[string]any{"organization": req.Name})

	updated, err := h.queries.GetOrganizationByID(r.Context(), org.ID)
	if err != nil {
		WriteInternalError(w, "Failed to update organization")
		return
	}
	WriteSuccess(w, updated, nil)
}

// DeleteOrganization handles DELETE /api/v1/organizations/{id}. Superuser only.
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	user := middleware.GetUser(r)

	if err := h.queries.DeleteOrganization(r.Context(), org.ID); err != nil {
		WriteInternalError(w, "Failed to delete organization")
		return
	}

	h.invalidateEventCache(r)
	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelWarning, "organization deleted",
		&user.ID, middleware.ClientIP(r), map[string]any{"organization": org.Name})

	WriteSuccess(w, map[string]string{"message": "Organization deleted"}, nil)
}

// UploadOrganizationLogo handles POST /api/v1/organizations/{id}/logo.
func (h *Handler) UploadOrganizationLogo(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	file, _, err := r.FormFile("logo")
	if err != nil {
		WriteBadRequest(w, "Missing logo file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.images.Process(file, imaging.KindOrgLogo, strconv.FormatInt(org.ID, 10))
	if err != nil {
		WriteValidationError(w, map[string]string{"logo": err.Error()})
		return
	}

	if err := h.queries.UpdateOrganizationLogo(r.Context(), org.ID,
		sql.NullString{String: result.Path, Valid: true}); err != nil {
		WriteInternalError(w, "Failed to save logo")
		return
	}

	WriteSuccess(w, map[string]string{"logo_path": result.Path, "thumb_path": result.ThumbPath}, nil)
}

// ListMembers handles GET /api/v1/organizations/{id}/members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}

	members, err := h.queries.ListMembersByOrganization(r.Context(), org.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list members")
		return
	}
	WriteSuccess(w, members, nil)
}

type memberRoleRequest struct {
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

type addMemberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// AddMember handles POST /api/v1/organizations/{id}/members: directly
// assigns an existing user a role, bypassing the invitation flow.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	actor := middleware.GetUser(r)
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if !model.ValidRole(req.Role) || req.Role == model.RoleSuperAdmin {
		WriteValidationError(w, map[string]string{"role": "Unknown role"})
		return
	}

	target, err := h.queries.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to add member")
		}
		return
	}

	if _, err := h.queries.GetUserRole(r.Context(), target.ID, org.ID); err == nil {
		WriteConflict(w, "User is already a member of this organization")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to add member")
		return
	}

	role, err := h.queries.CreateUserRole(r.Context(), store.CreateUserRoleParams{
		UserID:         target.ID,
		OrganizationID: org.ID,
		Role:           req.Role,
		IsActive:       true,
		AssignedAt:     time.Now(),
		AssignedBy:     sql.NullInt64{Int64: actor.ID, Valid: true},
	})
	if err != nil {
		WriteInternalError(w, "Failed to add member")
		return
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelInfo, "member added",
		&actor.ID, middleware.ClientIP(r),
		map[string]any{"organization": org.Name, "member": target.Username, "role": req.Role})

	WriteCreated(w, role)
}

// UpdateMemberRole handles PUT /api/v1/organizations/{id}/members/{userID}.
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	actor := middleware.GetUser(r)
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	memberID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	var req memberRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !model.ValidRole(req.Role) || req.Role == model.RoleSuperAdmin {
		WriteValidationError(w, map[string]string{"role": "Unknown role"})
		return
	}

	role, err := h.queries.GetUserRole(r.Context(), memberID, org.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Membership not found")
		} else {
			WriteInternalError(w, "Failed to update membership")
		}
		return
	}

	isActive := role.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	if err := h.queries.UpdateUserRole(r.Context(), store.UpdateUserRoleParams{
		ID:       role.ID,
		Role:     req.Role,
		IsActive: isActive,
	}); err != nil {
		WriteInternalError(w, "Failed to update membership")
		return
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelInfo, "member role updated",
		&actor.ID, middleware.ClientIP(r),
		map[string]any{"organization": org.Name, "member_id": memberID, "role": req.Role})

	WriteSuccess(w, map[string]string{"message": "Membership updated"}, nil)
}

// RemoveMember handles DELETE /api/v1/organizations/{id}/members/{userID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	actor := middleware.GetUser(r)
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	memberID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	role, err := h.queries.GetUserRole(r.Context(), memberID, org.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Membership not found")
		} else {
			WriteInternalError(w, "Failed to remove member")
		}
		return
	}

	if err := h.queries.DeleteUserRole(r.Context(), role.ID); err != nil {
		WriteInternalError(w, "Failed to remove member")
		return
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelWarning, "member removed",
		&actor.ID, middleware.ClientIP(r),
		map[string]any{"organization": org.Name, "member_id": memberID})

	WriteSuccess(w, map[string]string{"message": "Member removed"}, nil)
}

// ListInvitations handles GET /api/v1/organizations/{id}/invitations.
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	invitations, err := h.queries.ListInvitationsByOrganization(r.Context(), org.ID)
	if err != nil {
		WriteInternalError(w, "Failed to list invitations")
		return
	}
	WriteSuccess(w, invitations, nil)
}

type invitationRequest struct {
	Email  string   `json:"email"`
	Emails []string `json:"emails"`
	Role   string   `json:"role"`
}

// CreateInvitation handles POST /api/v1/organizations/{id}/invitations.
// A single "email" or a bulk "emails" list may be supplied; bulk
// requests share one role.
func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireOrganization(w, r)
	if !ok {
		return
	}
	actor := middleware.GetUser(r)
	if !h.canAdministerOrg(r, org.ID) {
		WriteForbidden(w, "Organization admin role required")
		return
	}

	var req invitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emails := req.Emails
	if req.Email != "" {
		emails = append(emails, req.Email)
	}
	seen := make(map[string]bool, len(emails))
	clean := emails[:0]
	for _, e := range emails {
		e = strings.TrimSpace(strings.ToLower(e))
		if !seen[e] {
			seen[e] = true
			clean = append(clean, e)
		}
	}
	emails = clean

	errs := make(map[string]string)
	if len(emails) == 0 {
		errs["email"] = "A valid email is required"
	}
	for _, e := range emails {
		if e == "" || !strings.Contains(e, "@") {
			errs["email"] = "A valid email is required"
			break
		}
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if !model.ValidRole(req.Role) || req.Role == model.RoleSuperAdmin {
		errs["role"] = "Unknown role"
	}
	if len(errs) > 0 {
		WriteValidationError(w, errs)
		return
	}

	created := make([]model.Invitation, 0, len(emails))
	for _, email := range emails {
		token := uuid.NewString()
		inv, err := h.queries.CreateInvitation(r.Context(), store.CreateInvitationParams{
			Email:          email,
			Role:           req.Role,
			Token:          token,
			ExpiresAt:      time.Now().Add(invitationTTL),
			CreatedAt:      time.Now(),
			InvitedBy:      actor.ID,
			OrganizationID: org.ID,
		})
		if err != nil {
			WriteInternalError(w, "Failed to create invitation")
			return
		}
		created = append(created, inv)

		if h.mailer.Enabled() {
			go func(i model.Invitation, orgName, tok string) {
				if err := h.mailer.SendInvitation(i, orgName, tok); err != nil {
					slog.Warn("failed to send invitation mail", "email", i.Email, "error", err)
				}
			}(inv, org.Name, token)
		}
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelInfo, "invitation created",
		&actor.ID, middleware.ClientIP(r),
		map[string]any{"organization": org.Name, "emails": emails, "role": req.Role})

	if len(created) == 1 {
		WriteCreated(w, created[0])
		return
	}
	WriteCreated(w, created)
}

// AcceptInvitation handles POST /api/v1/invitations/{token}/accept.
// The authenticated user redeems the invitation and gains the role.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	inv, ok := h.requirePendingInvitation(w, r)
	if !ok {
		return
	}

	// The invitation is bound to the invited address.
	if !strings.EqualFold(inv.Email, user.Email) {
		WriteForbidden(w, "This invitation was issued to a different email address")
		return
	}

	if _, err := h.queries.GetUserRole(r.Context(), user.ID, inv.OrganizationID); err == nil {
		WriteConflict(w, "You are already a member of this organization")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		WriteInternalError(w, "Failed to accept invitation")
		return
	}

	role, err := h.queries.CreateUserRole(r.Context(), store.CreateUserRoleParams{
		UserID:         user.ID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
		IsActive:       true,
		AssignedAt:     time.Now(),
		AssignedBy:     sql.NullInt64{Int64: inv.InvitedBy, Valid: true},
	})
	if err != nil {
		WriteInternalError(w, "Failed to accept invitation")
		return
	}

	if err := h.queries.UpdateInvitationStatus(r.Context(), inv.ID, model.InvitationAccepted, time.Now()); err != nil {
		slog.Warn("failed to mark invitation accepted", "invitation_id", inv.ID, "error", err)
	}

	_ = h.audit.LogOrgAction(r.Context(), model.AuditLevelInfo, "invitation accepted",
		&user.ID, middleware.ClientIP(r),
		map[string]any{"organization_id": inv.OrganizationID, "role": inv.Role})

	WriteSuccess(w, role, nil)
}

// DeclineInvitation handles POST /api/v1/invitations/{token}/decline.
func (h *Handler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	inv, ok := h.requirePendingInvitation(w, r)
	if !ok {
		return
	}
	if !strings.EqualFold(inv.Email, user.Email) {
		WriteForbidden(w, "This invitation was issued to a different email address")
		return
	}

	if err := h.queries.UpdateInvitationStatus(r.Context(), inv.ID, model.InvitationDeclined, time.Now()); err != nil {
		WriteInternalError(w, "Failed to decline invitation")
		return
	}

	WriteSuccess(w, map[string]string{"message": "Invitation declined"}, nil)
}

// requirePendingInvitation resolves the token URL param to a pending,
// unexpired invitation.
func (h *Handler) requirePendingInvitation(w http.ResponseWriter, r *http.Request) (model.Invitation, bool) {
	token := chi.URLParam(r, "token")
	if token == "" {
		WriteBadRequest(w, "Missing invitation token", nil)
		return model.Invitation{}, false
	}

	inv, err := h.queries.GetInvitationByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Invitation not found")
		} else {
			WriteInternalError(w, "Failed to look up invitation")
		}
		return model.Invitation{}, false
	}

	if inv.Status != model.InvitationPending {
		WriteConflict(w, "This invitation has already been "+inv.Status)
		return model.Invitation{}, false
	}
	if inv.IsExpired() {
		_ = h.queries.UpdateInvitationStatus(r.Context(), inv.ID, model.InvitationExpired, time.Now())
		WriteConflict(w, "This invitation has expired")
		return model.Invitation{}, false
	}
	return inv, true
}

// requireOrganization resolves the id URL param to an organization.
func (h *Handler) requireOrganization(w http.ResponseWriter, r *http.Request) (model.Organization, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid organization ID", nil)
		return model.Organization{}, false
	}

	org, err := h.queries.GetOrganizationByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Organization not found")
		} else {
			WriteInternalError(w, "Failed to retrieve organization")
		}
		return model.Organization{}, false
	}
	return org, true
}

// canAdministerOrg reports whether the requester can manage the given
// organization: a superuser, or an active org_admin of that org.
func (h *Handler) canAdministerOrg(r *http.Request, orgID int64) bool {
	user := middleware.GetUser(r)
	if user == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	role, err := h.queries.GetUserRole(r.Context(), user.ID, orgID)
	if err != nil {
		return false
	}
	return role.IsActive && model.RoleLevel(role.Role) >= model.RoleLevel(model.RoleOrgAdmin)
}
