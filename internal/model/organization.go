// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Organization roles, ordered by privilege.
const (
	RoleSuperAdmin = "super_admin"
	RoleOrgAdmin   = "org_admin"
	RoleStaff      = "staff"
	RoleMember     = "member"
)

// ValidRole reports whether role is one of the known organization roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleOrgAdmin, RoleStaff, RoleMember:
		return true
	}
	return false
}

// RoleLevel returns a numeric level for the role hierarchy.
// Higher level = more permissions. Unknown roles have level 0.
func RoleLevel(role string) int {
	switch role {
	case RoleSuperAdmin:
		return 3
	case RoleOrgAdmin:
		return 2
	case RoleStaff:
		return 1
	default:
		return 0
	}
}

// Organization represents an institution that scopes events and memberships.
type Organization struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description,omitempty"`
	Website     string         `json:"website,omitempty"`
	Address     string         `json:"address,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Email       string         `json:"email,omitempty"`
	LogoPath    sql.NullString `json:"logo_path,omitempty"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// UserRole assigns a role to a user within an organization.
// The (user, organization) pair is unique.
type UserRole struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"user_id"`
	OrganizationID int64         `json:"organization_id"`
	Role           string        `json:"role"`
	IsActive       bool          `json:"is_active"`
	AssignedAt     time.Time     `json:"assigned_at"`
	AssignedBy     sql.NullInt64 `json:"assigned_by,omitempty"`
}

// Invitation statuses.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
	InvitationExpired  = "expired"
)

// Invitation is a pending offer of organization membership, redeemed by token.
type Invitation struct {
	ID             int64        `json:"id"`
	Email          string       `json:"email"`
	Role           string       `json:"role"`
	Status         string       `json:"status"`
	Token          string       `json:"-"` // Never expose in JSON
	ExpiresAt      time.Time    `json:"expires_at"`
	CreatedAt      time.Time    `json:"created_at"`
	RespondedAt    sql.NullTime `json:"responded_at,omitempty"`
	InvitedBy      int64        `json:"invited_by"`
	OrganizationID int64        `json:"organization_id"`
}

// IsExpired reports whether the invitation is past its expiry time.
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}
