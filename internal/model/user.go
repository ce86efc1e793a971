// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including User, Organization, Event, and registration structures.
package model

import (
	"database/sql"
	"strings"
	"time"
)

// User represents a SphereLink account.
type User struct {
	ID           int64        `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	PasswordHash string       `json:"-"` // Never expose in JSON
	IsSuperuser  bool         `json:"is_superuser"`
	IsStaff      bool         `json:"is_staff"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastLoginAt  sql.NullTime `json:"last_login_at,omitempty"`
}

// FullName returns the user's display name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Profile holds the optional per-user profile record.
type Profile struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Bio       sql.NullString `json:"bio,omitempty"`
	PhotoPath sql.NullString `json:"photo_path,omitempty"`
}
