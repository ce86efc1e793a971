// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Contact message statuses.
const (
	ContactPending    = "pending"
	ContactInProgress = "in_progress"
	ContactResolved   = "resolved"
	ContactClosed     = "closed"
)

// ValidContactStatus reports whether s is a known contact message status.
func ValidContactStatus(s string) bool {
	switch s {
	case ContactPending, ContactInProgress, ContactResolved, ContactClosed:
		return true
	}
	return false
}

// ContactMessage stores a help request from a user who cannot log in
// or needs account assistance. Created anonymously, moderated by admins.
type ContactMessage struct {
	ID         int64          `json:"id"`
	Email      string         `json:"email"`
	Subject    string         `json:"subject"`
	Message    string         `json:"message"`
	Status     string         `json:"status"`
	AdminNotes sql.NullString `json:"admin_notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
