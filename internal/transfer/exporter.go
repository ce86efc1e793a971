// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spherelink/spherelink/internal/store"
)

// Exporter produces database snapshots in the versioned JSON format.
type Exporter struct {
	store  *store.Queries
	logger *slog.Logger
}

// NewExporter creates a new Exporter instance.
func NewExporter(queries *store.Queries, logger *slog.Logger) *Exporter {
	return &Exporter{store: queries, logger: logger}
}

// Export reads the entire database into an ExportData document.
func (e *Exporter) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
	}

	orgs, err := e.store.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	orgNameByID := make(map[int64]string, len(orgs))
	for _, org := range orgs {
		orgNameByID[org.ID] = org.Name
		data.Organizations = append(data.Organizations, ExportOrg{
			Name:        org.Name,
			Slug:        org.Slug,
			Description: org.Description,
			Website:     org.Website,
			Address:     org.Address,
			Phone:       org.Phone,
			Email:       org.Email,
			IsActive:    org.IsActive,
			CreatedAt:   org.CreatedAt,
			UpdatedAt:   org.UpdatedAt,
		})
	}

	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	usernameByID := make(map[int64]string, len(users))
	for _, u := range users {
		usernameByID[u.ID] = u.Username
		eu := ExportUser{
			Username:     u.Username,
			Email:        u.Email,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			PasswordHash: u.PasswordHash,
			IsSuperuser:  u.IsSuperuser,
			IsStaff:      u.IsStaff,
			IsActive:     u.IsActive,
			CreatedAt:    u.CreatedAt,
			UpdatedAt:    u.UpdatedAt,
		}
		profile, err := e.store.GetProfileByUserID(ctx, u.ID)
		switch {
		case err == nil:
			eu.Bio = profile.Bio.String
			eu.PhotoPath = profile.PhotoPath.String
		case err != sql.ErrNoRows:
			return nil, fmt.Errorf("loading profile for %s: %w", u.Username, err)
		}
		data.Users = append(data.Users, eu)
	}

	for _, org := range orgs {
		members, err := e.store.ListMembersByOrganization(ctx, org.ID)
		if err != nil {
			return nil, fmt.Errorf("listing members of %s: %w", org.Name, err)
		}
		for _, m := range members {
			role := ExportRole{
				Username:     m.Username,
				Organization: org.Name,
				Role:         m.Role,
				IsActive:     m.UserRole.IsActive,
				AssignedAt:   m.AssignedAt,
			}
			if m.AssignedBy.Valid {
				role.AssignedByUsername = usernameByID[m.AssignedBy.Int64]
			}
			data.Roles = append(data.Roles, role)
		}

		invitations, err := e.store.ListInvitationsByOrganization(ctx, org.ID)
		if err != nil {
			return nil, fmt.Errorf("listing invitations of %s: %w", org.Name, err)
		}
		for _, inv := range invitations {
			ei := ExportInvitation{
				Organization:      org.Name,
				Email:             inv.Email,
				Role:              inv.Role,
				Token:             inv.Token,
				Status:            inv.Status,
				InvitedByUsername: usernameByID[inv.InvitedBy],
				ExpiresAt:         inv.ExpiresAt,
				CreatedAt:         inv.CreatedAt,
			}
			if inv.RespondedAt.Valid {
				t := inv.RespondedAt.Time
				ei.RespondedAt = &t
			}
			data.Invitations = append(data.Invitations, ei)
		}
	}

	events, err := e.store.ListEvents(ctx, store.ListEventsParams{All: true})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	for _, ev := range events {
		ee := ExportEvent{
			Title:             ev.Title,
			Slug:              ev.Slug,
			Description:       ev.Description,
			Date:              ev.Date,
			Location:          ev.Location,
			ImagePath:         ev.ImagePath.String,
			Duration:          ev.Duration,
			Requirements:      ev.Requirements,
			EventType:         ev.EventType,
			IsOfficial:        ev.IsOfficial,
			MaxCapacity:       ev.MaxCapacity,
			CreatedByUsername: usernameByID[ev.CreatedBy],
			CreatedAt:         ev.CreatedAt,
			UpdatedAt:         ev.UpdatedAt,
		}
		if ev.OrganizationID.Valid {
			ee.Organization = orgNameByID[ev.OrganizationID.Int64]
		}
		data.Events = append(data.Events, ee)

		attendees, err := e.store.ListAttendeesByEvent(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("listing attendees of %s: %w", ev.Slug, err)
		}
		for _, a := range attendees {
			data.Registrations = append(data.Registrations, ExportRegistration{
				Username:     a.Username,
				EventSlug:    ev.Slug,
				RegisteredAt: a.RegisteredAt,
			})
		}

		comments, err := e.store.ListCommentsByEvent(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("listing comments of %s: %w", ev.Slug, err)
		}
		for _, c := range comments {
			data.Comments = append(data.Comments, ExportComment{
				Username:  c.Username,
				EventSlug: ev.Slug,
				Body:      c.Body,
				CreatedAt: c.CreatedAt,
			})
		}
	}

	contacts, err := e.store.ListContactMessages(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing contact messages: %w", err)
	}
	for _, m := range contacts {
		data.Contacts = append(data.Contacts, ExportContact{
			Email:      m.Email,
			Subject:    m.Subject,
			Message:    m.Message,
			Status:     m.Status,
			AdminNotes: m.AdminNotes.String,
			CreatedAt:  m.CreatedAt,
			UpdatedAt:  m.UpdatedAt,
		})
	}

	e.logger.Info("snapshot exported",
		"organizations", len(data.Organizations),
		"users", len(data.Users),
		"events", len(data.Events),
		"registrations", len(data.Registrations),
	)
	return data, nil
}

// ExportToFile writes a snapshot of the database to path as indented JSON.
func (e *Exporter) ExportToFile(ctx context.Context, path string) error {
	data, err := e.Export(ctx)
	if err != nil {
		return err
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	buf = append(buf, '\n')

	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
