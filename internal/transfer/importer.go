// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/util"
)

// ErrConflict indicates the snapshot collides with rows already in the
// database. The caller should flush before loading.
var ErrConflict = errors.New("snapshot conflicts with existing data")

// ErrUnknownField indicates the snapshot contains fields this version
// does not recognize. Loading with IgnoreUnknown accepts them.
var ErrUnknownField = errors.New("snapshot contains unknown fields")

// Importer loads database snapshots produced by Exporter.
type Importer struct {
	store  *store.Queries
	db     *sql.DB
	logger *slog.Logger
}

// NewImporter creates a new Importer instance.
func NewImporter(queries *store.Queries, db *sql.DB, logger *slog.Logger) *Importer {
	return &Importer{store: queries, db: db, logger: logger}
}

// ReadFile parses a snapshot file. Unless opts.IgnoreUnknown is set,
// documents with unrecognized fields are rejected so typos and
// incompatible versions fail loudly.
func ReadFile(path string, opts ImportOptions) (*ExportData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}

// Read parses a snapshot document from r.
func Read(r io.Reader, opts ImportOptions) (*ExportData, error) {
	dec := json.NewDecoder(r)
	if !opts.IgnoreUnknown {
		dec.DisallowUnknownFields()
	}

	var data ExportData
	if err := dec.Decode(&data); err != nil {
		if !opts.IgnoreUnknown && strings.Contains(err.Error(), "unknown field") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownField, err)
		}
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &data, nil
}

// Validate checks a snapshot for structural problems before any write.
func (i *Importer) Validate(data *ExportData) []ImportError {
	var errs []ImportError

	if data.Version != ExportVersion {
		errs = append(errs, ImportError{
			Entity:  "snapshot",
			Key:     data.Version,
			Message: fmt.Sprintf("unsupported snapshot version, want %s", ExportVersion),
		})
	}
	for _, u := range data.Users {
		if u.Username == "" || u.Email == "" {
			errs = append(errs, ImportError{Entity: "user", Key: u.Username, Message: "missing username or email"})
		}
	}
	for _, o := range data.Organizations {
		if o.Name == "" || o.Slug == "" {
			errs = append(errs, ImportError{Entity: "organization", Key: o.Name, Message: "missing name or slug"})
		}
	}
	for _, r := range data.Roles {
		if !model.ValidRole(r.Role) {
			errs = append(errs, ImportError{Entity: "role", Key: r.Username, Message: "unknown role " + r.Role})
		}
	}
	for _, ev := range data.Events {
		if ev.Slug == "" || ev.Title == "" {
			errs = append(errs, ImportError{Entity: "event", Key: ev.Slug, Message: "missing title or slug"})
		}
		if !model.ValidEventType(ev.EventType) {
			errs = append(errs, ImportError{Entity: "event", Key: ev.Slug, Message: "unknown event type " + ev.EventType})
		}
	}
	return errs
}

// Import loads a snapshot into the database. The whole load runs in one
// transaction and rolls back on the first error, so a failed load leaves
// the database untouched.
func (i *Importer) Import(ctx context.Context, data *ExportData, opts ImportOptions) (*ImportResult, error) {
	result := NewImportResult(opts.DryRun)

	if errs := i.Validate(data); len(errs) > 0 {
		result.Errors = errs
		return result, errors.New("snapshot validation failed")
	}

	if opts.DryRun {
		result.Imported["organizations"] = len(data.Organizations)
		result.Imported["users"] = len(data.Users)
		result.Imported["roles"] = len(data.Roles)
		result.Imported["invitations"] = len(data.Invitations)
		result.Imported["events"] = len(data.Events)
		result.Imported["registrations"] = len(data.Registrations)
		result.Imported["comments"] = len(data.Comments)
		result.Imported["contact_messages"] = len(data.Contacts)
		return result, nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := i.store.WithTx(tx)

	// Load in dependency order: organizations and users first, then
	// everything that references them by natural key.
	orgIDs := make(map[string]int64, len(data.Organizations))
	for _, o := range data.Organizations {
		org, err := q.CreateOrganization(ctx, store.CreateOrganizationParams{
			Name:        o.Name,
			Slug:        o.Slug,
			Description: o.Description,
			Website:     o.Website,
			Address:     o.Address,
			Phone:       o.Phone,
			Email:       o.Email,
			IsActive:    o.IsActive,
			CreatedAt:   o.CreatedAt,
			UpdatedAt:   o.UpdatedAt,
		})
		if err != nil {
			return result, wrapLoadError("organization", o.Name, err)
		}
		orgIDs[o.Name] = org.ID
		result.add("organizations")
	}

	userIDs := make(map[string]int64, len(data.Users))
	for _, u := range data.Users {
		created, err := q.CreateUser(ctx, store.CreateUserParams{
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
		})
		if err != nil {
			return result, wrapLoadError("user", u.Username, err)
		}
		userIDs[u.Username] = created.ID
		result.add("users")

		if u.Bio != "" || u.PhotoPath != "" {
			profile, err := q.CreateProfile(ctx, store.CreateProfileParams{
				UserID: created.ID,
				Bio:    util.NullStringFromValue(u.Bio),
			})
			if err != nil {
				return result, wrapLoadError("profile", u.Username, err)
			}
			if u.PhotoPath != "" {
				if err := q.UpdateProfilePhoto(ctx, profile.UserID, util.NullStringFromValue(u.PhotoPath)); err != nil {
					return result, wrapLoadError("profile", u.Username, err)
				}
			}
		}
	}

	for _, r := range data.Roles {
		userID, orgID, err := resolveRefs(userIDs, orgIDs, r.Username, r.Organization)
		if err != nil {
			return result, fmt.Errorf("role for %s: %w", r.Username, err)
		}
		var assignedBy sql.NullInt64
		if r.AssignedByUsername != "" {
			if id, ok := userIDs[r.AssignedByUsername]; ok {
				assignedBy = util.NullInt64FromValue(id)
			}
		}
		if _, err := q.CreateUserRole(ctx, store.CreateUserRoleParams{
			UserID:         userID,
			OrganizationID: orgID,
			Role:           r.Role,
			IsActive:       r.IsActive,
			AssignedAt:     r.AssignedAt,
			AssignedBy:     assignedBy,
		}); err != nil {
			return result, wrapLoadError("role", r.Username, err)
		}
		result.add("roles")
	}

	for _, inv := range data.Invitations {
		orgID, ok := orgIDs[inv.Organization]
		if !ok {
			return result, fmt.Errorf("invitation for %s: organization %q not in snapshot", inv.Email, inv.Organization)
		}
		invitedBy, ok := userIDs[inv.InvitedByUsername]
		if !ok {
			return result, fmt.Errorf("invitation for %s: inviter %q not in snapshot", inv.Email, inv.InvitedByUsername)
		}
		created, err := q.CreateInvitation(ctx, store.CreateInvitationParams{
			Email:          inv.Email,
			Role:           inv.Role,
			Token:          inv.Token,
			ExpiresAt:      inv.ExpiresAt,
			CreatedAt:      inv.CreatedAt,
			InvitedBy:      invitedBy,
			OrganizationID: orgID,
		})
		if err != nil {
			return result, wrapLoadError("invitation", inv.Email, err)
		}
		if inv.Status != model.InvitationPending {
			respondedAt := inv.CreatedAt
			if inv.RespondedAt != nil {
				respondedAt = *inv.RespondedAt
			}
			if err := q.UpdateInvitationStatus(ctx, created.ID, inv.Status, respondedAt); err != nil {
				return result, wrapLoadError("invitation", inv.Email, err)
			}
		}
		result.add("invitations")
	}

	eventIDs := make(map[string]int64, len(data.Events))
	for _, ev := range data.Events {
		createdBy, ok := userIDs[ev.CreatedByUsername]
		if !ok {
			return result, fmt.Errorf("event %s: creator %q not in snapshot", ev.Slug, ev.CreatedByUsername)
		}
		var orgRef sql.NullInt64
		if ev.Organization != "" {
			orgID, ok := orgIDs[ev.Organization]
			if !ok {
				return result, fmt.Errorf("event %s: organization %q not in snapshot", ev.Slug, ev.Organization)
			}
			orgRef = util.NullInt64FromValue(orgID)
		}
		created, err := q.CreateEvent(ctx, store.CreateEventParams{
			Title:          ev.Title,
			Slug:           ev.Slug,
			Description:    ev.Description,
			Date:           ev.Date,
			Location:       ev.Location,
			Duration:       ev.Duration,
			Requirements:   ev.Requirements,
			EventType:      ev.EventType,
			IsOfficial:     ev.IsOfficial,
			MaxCapacity:    ev.MaxCapacity,
			OrganizationID: orgRef,
			CreatedBy:      createdBy,
			CreatedAt:      ev.CreatedAt,
			UpdatedAt:      ev.UpdatedAt,
		})
		if err != nil {
			return result, wrapLoadError("event", ev.Slug, err)
		}
		if ev.ImagePath != "" {
			if err := q.UpdateEventImage(ctx, created.ID, util.NullStringFromValue(ev.ImagePath)); err != nil {
				return result, wrapLoadError("event", ev.Slug, err)
			}
		}
		eventIDs[ev.Slug] = created.ID
		result.add("events")
	}

	for _, r := range data.Registrations {
		userID, eventID, err := resolveEventRefs(userIDs, eventIDs, r.Username, r.EventSlug)
		if err != nil {
			return result, fmt.Errorf("registration: %w", err)
		}
		if _, err := q.CreateRegistration(ctx, userID, eventID, r.RegisteredAt); err != nil {
			return result, wrapLoadError("registration", r.Username+"/"+r.EventSlug, err)
		}
		result.add("registrations")
	}

	for _, c := range data.Comments {
		userID, eventID, err := resolveEventRefs(userIDs, eventIDs, c.Username, c.EventSlug)
		if err != nil {
			return result, fmt.Errorf("comment: %w", err)
		}
		if _, err := q.CreateComment(ctx, eventID, userID, c.Body, c.CreatedAt); err != nil {
			return result, wrapLoadError("comment", c.Username+"/"+c.EventSlug, err)
		}
		result.add("comments")
	}

	for _, m := range data.Contacts {
		created, err := q.CreateContactMessage(ctx, store.CreateContactMessageParams{
			Email:     m.Email,
			Subject:   m.Subject,
			Message:   m.Message,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
		if err != nil {
			return result, wrapLoadError("contact_message", m.Email, err)
		}
		if m.Status != model.ContactPending || m.AdminNotes != "" {
			if err := q.UpdateContactMessage(ctx, store.UpdateContactMessageParams{
				ID:         created.ID,
				Status:     m.Status,
				AdminNotes: util.NullStringFromValue(m.AdminNotes),
				UpdatedAt:  m.UpdatedAt,
			}); err != nil {
				return result, wrapLoadError("contact_message", m.Email, err)
			}
		}
		result.add("contact_messages")
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing load: %w", err)
	}

	i.logger.Info("snapshot loaded",
		"organizations", result.Imported["organizations"],
		"users", result.Imported["users"],
		"events", result.Imported["events"],
		"registrations", result.Imported["registrations"],
	)
	return result, nil
}

// ImportFromFile reads and loads a snapshot file in one step.
func (i *Importer) ImportFromFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	data, err := ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, data, opts)
}

func resolveRefs(userIDs, orgIDs map[string]int64, username, org string) (int64, int64, error) {
	userID, ok := userIDs[username]
	if !ok {
		return 0, 0, fmt.Errorf("user %q not in snapshot", username)
	}
	orgID, ok := orgIDs[org]
	if !ok {
		return 0, 0, fmt.Errorf("organization %q not in snapshot", org)
	}
	return userID, orgID, nil
}

func resolveEventRefs(userIDs, eventIDs map[string]int64, username, slug string) (int64, int64, error) {
	userID, ok := userIDs[username]
	if !ok {
		return 0, 0, fmt.Errorf("user %q not in snapshot", username)
	}
	eventID, ok := eventIDs[slug]
	if !ok {
		return 0, 0, fmt.Errorf("event %q not in snapshot", slug)
	}
	return userID, eventID, nil
}

// wrapLoadError tags UNIQUE constraint failures with ErrConflict so the
// caller can suggest flushing before loading.
func wrapLoadError(entity, key string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("loading %s %q: %w: %v", entity, key, ErrConflict, err)
	}
	return fmt.Errorf("loading %s %q: %w", entity, key, err)
}
