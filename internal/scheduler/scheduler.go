// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs: purging events whose
// date has passed, expiring overdue organization invitations, and
// trimming the audit log.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/service"
	"github.com/spherelink/spherelink/internal/store"
)

// auditRetention is how long audit entries are kept before the weekly
// cleanup removes them.
const auditRetention = 90 * 24 * time.Hour

// Scheduler handles periodic maintenance tasks.
type Scheduler struct {
	db     *sql.DB
	cron   *cron.Cron
	audit  *service.AuditService
	logger *slog.Logger
}

// New creates a new scheduler instance.
func New(db *sql.DB, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:     db,
		cron:   cron.New(),
		audit:  service.NewAuditService(db),
		logger: logger,
	}
}

// Start registers the maintenance jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	// Purge past events daily at 03:00
	if _, err := s.cron.AddFunc("0 3 * * *", func() {
		if err := s.purgeExpiredEvents(); err != nil {
			s.logger.Error("failed to purge expired events", "error", err)
		}
	}); err != nil {
		return err
	}

	// Expire overdue invitations hourly
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.expireInvitations(); err != nil {
			s.logger.Error("failed to expire invitations", "error", err)
		}
	}); err != nil {
		return err
	}

	// Trim the audit log weekly, Sunday 04:00
	if _, err := s.cron.AddFunc("0 4 * * 0", func() {
		if err := s.trimAuditLog(); err != nil {
			s.logger.Error("failed to trim audit log", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// purgeExpiredEvents deletes events whose date has passed, along with
// their registrations and comments.
func (s *Scheduler) purgeExpiredEvents() error {
	ctx := context.Background()
	queries := store.New(s.db)

	now := time.Now()
	deleted, err := queries.DeleteExpiredEvents(ctx, now)
	if err != nil {
		return err
	}

	if deleted == 0 {
		return nil
	}

	s.logger.Info("purged expired events", "count", deleted)

	if err := s.audit.LogSystemEvent(ctx, model.AuditLevelInfo,
		"expired events purged by scheduler",
		map[string]any{"deleted": deleted, "cutoff": now.Format(time.RFC3339)},
	); err != nil {
		s.logger.Warn("failed to log purge", "error", err)
	}

	return nil
}

// expireInvitations marks overdue pending invitations as expired.
func (s *Scheduler) expireInvitations() error {
	ctx := context.Background()
	queries := store.New(s.db)

	now := time.Now()
	expired, err := queries.ExpireOverdueInvitations(ctx, now)
	if err != nil {
		return err
	}

	if expired == 0 {
		return nil
	}

	s.logger.Info("expired overdue invitations", "count", expired)

	if err := s.audit.LogSystemEvent(ctx, model.AuditLevelInfo,
		"overdue invitations expired by scheduler",
		map[string]any{"expired": expired},
	); err != nil {
		s.logger.Warn("failed to log invitation expiry", "error", err)
	}

	return nil
}

// trimAuditLog removes audit entries past the retention window.
func (s *Scheduler) trimAuditLog() error {
	return s.audit.DeleteOldEntries(context.Background(), auditRetention)
}
