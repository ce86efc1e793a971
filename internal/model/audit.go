// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Audit log levels.
const (
	AuditLevelInfo    = "info"
	AuditLevelWarning = "warning"
	AuditLevelError   = "error"
)

// Audit log categories.
const (
	AuditCategoryAuth   = "auth"
	AuditCategoryEvent  = "event"
	AuditCategoryOrg    = "organization"
	AuditCategoryUser   = "user"
	AuditCategoryMail   = "mail"
	AuditCategorySystem = "system"
)

// AuditEntry is a row in the audit log, written by the audit service
// and by the slog handler for WARN and ERROR level records.
type AuditEntry struct {
	ID        int64         `json:"id"`
	Level     string        `json:"level"`
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	UserID    sql.NullInt64 `json:"user_id,omitempty"`
	IPAddress string        `json:"ip_address,omitempty"`
	Metadata  string        `json:"metadata"` // JSON object
	CreatedAt time.Time     `json:"created_at"`
}
