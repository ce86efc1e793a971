// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic helpers, including the audit
// trail writer used by handlers and the scheduler.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mileusna/useragent"

	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

// AuditService writes structured entries to the audit log.
type AuditService struct {
	queries *store.Queries
}

// NewAuditService creates a new AuditService.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{
		queries: store.New(db),
	}
}

// Log creates a new audit log entry.
func (s *AuditService) Log(ctx context.Context, level, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	var nullUserID sql.NullInt64
	if userID != nil {
		nullUserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	metadataJSON := "{}"
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateAuditEntry(ctx, store.CreateAuditEntryParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		IPAddress: ipAddress,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to write audit entry", "error", err, "category", category)
		return err
	}

	return nil
}

// LogInfo logs an info-level entry.
func (s *AuditService) LogInfo(ctx context.Context, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, model.AuditLevelInfo, category, message, userID, ipAddress, metadata)
}

// LogWarning logs a warning-level entry.
func (s *AuditService) LogWarning(ctx context.Context, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, model.AuditLevelWarning, category, message, userID, ipAddress, metadata)
}

// LogError logs an error-level entry.
func (s *AuditService) LogError(ctx context.Context, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, model.AuditLevelError, category, message, userID, ipAddress, metadata)
}

// LogAuthEvent logs an authentication event.
func (s *AuditService) LogAuthEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryAuth, message, userID, ipAddress, metadata)
}

// LogEventAction logs an event-management action (create, register, cancel).
func (s *AuditService) LogEventAction(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryEvent, message, userID, ipAddress, metadata)
}

// LogOrgAction logs an organization-management action.
func (s *AuditService) LogOrgAction(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryOrg, message, userID, ipAddress, metadata)
}

// LogUserAction logs a user or profile action.
func (s *AuditService) LogUserAction(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryUser, message, userID, ipAddress, metadata)
}

// LogMailEvent logs a mail delivery event.
func (s *AuditService) LogMailEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategoryMail, message, nil, "", metadata)
}

// LogSystemEvent logs a system event.
func (s *AuditService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.Log(ctx, level, model.AuditCategorySystem, message, nil, "", metadata)
}

// LogLogin records a successful or failed login attempt, capturing the
// parsed user agent alongside the username.
func (s *AuditService) LogLogin(r *http.Request, username string, userID *int64, success bool) error {
	metadata := map[string]any{
		"username": username,
		"success":  success,
	}
	for k, v := range parseUserAgent(r.UserAgent()) {
		metadata[k] = v
	}

	level := model.AuditLevelInfo
	message := "user logged in"
	if !success {
		level = model.AuditLevelWarning
		message = "failed login attempt"
	}

	return s.LogAuthEvent(r.Context(), level, message, userID, clientIP(r), metadata)
}

// DeleteOldEntries removes audit entries older than the specified duration.
func (s *AuditService) DeleteOldEntries(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return s.queries.DeleteOldAuditEntries(ctx, cutoff)
}

// parseUserAgent extracts browser, OS and device info from a User-Agent
// header. Empty fields are omitted.
func parseUserAgent(raw string) map[string]any {
	if raw == "" {
		return nil
	}

	ua := useragent.Parse(raw)
	info := make(map[string]any)
	if ua.Name != "" {
		info["browser"] = ua.Name
		if ua.Version != "" {
			info["browser_version"] = ua.Version
		}
	}
	if ua.OS != "" {
		info["os"] = ua.OS
	}
	switch {
	case ua.Mobile:
		info["device"] = "mobile"
	case ua.Tablet:
		info["device"] = "tablet"
	case ua.Desktop:
		info["device"] = "desktop"
	case ua.Bot:
		info["device"] = "bot"
	}
	if len(info) == 0 {
		return nil
	}
	return info
}

func clientIP(r *http.Request) string {
	return middleware.ClientIP(r)
}
