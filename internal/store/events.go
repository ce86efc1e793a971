package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

// CreateEventParams holds the fields for creating an event.
type CreateEventParams struct {
	Title          string
	Slug           string
	Description    string
	Date           time.Time
	Location       string
	Duration       int64
	Requirements   string
	EventType      string
	IsOfficial     bool
	MaxCapacity    int64
	OrganizationID sql.NullInt64
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const eventColumns = `id, title, slug, description, date, location, image_path, duration,
       requirements, event_type, is_official, max_capacity, organization_id, created_by,
       created_at, updated_at`

// CreateEvent inserts a new event and returns the stored row.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, `
INSERT INTO events (title, slug, description, date, location, duration, requirements,
                    event_type, is_official, max_capacity, organization_id, created_by,
                    created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+eventColumns,
		arg.Title, arg.Slug, arg.Description, arg.Date, arg.Location, arg.Duration,
		arg.Requirements, arg.EventType, arg.IsOfficial, arg.MaxCapacity,
		arg.OrganizationID, arg.CreatedBy, arg.CreatedAt, arg.UpdatedAt)
	return scanEvent(row)
}

// GetEventByID returns the event with the given ID.
func (q *Queries) GetEventByID(ctx context.Context, id int64) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// GetEventBySlug returns the event with the given slug.
func (q *Queries) GetEventBySlug(ctx context.Context, slug string) (model.Event, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = ?`, slug)
	return scanEvent(row)
}

// GetEventByTitleInOrganization returns the event with the given title within
// an organization. Used by the seed path's get-or-create check.
func (q *Queries) GetEventByTitleInOrganization(ctx context.Context, title string, organizationID int64) (model.Event, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE title = ? AND organization_id = ?`, title, organizationID)
	return scanEvent(row)
}

// ListEventsParams filters and pages the event listing.
type ListEventsParams struct {
	// OrganizationID scopes the listing. When Valid is false and All is
	// false, only events without an organization are returned.
	OrganizationID sql.NullInt64
	// All ignores organization scoping (superuser view).
	All bool
	// Search matches title, description, or location (case-insensitive).
	Search string
	// EventType filters by category when non-empty.
	EventType string
	// UpcomingOnly keeps events whose date is in the future.
	UpcomingOnly bool
	Limit        int64
	Offset       int64
}

func buildEventFilter(arg ListEventsParams) (string, []any) {
	var conds []string
	var args []any

	if !arg.All {
		if arg.OrganizationID.Valid {
			conds = append(conds, "organization_id = ?")
			args = append(args, arg.OrganizationID.Int64)
		} else {
			conds = append(conds, "organization_id IS NULL")
		}
	}
	if arg.Search != "" {
		conds = append(conds, "(title LIKE ? OR description LIKE ? OR location LIKE ?)")
		pattern := "%" + arg.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if arg.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, arg.EventType)
	}
	if arg.UpcomingOnly {
		conds = append(conds, "date >= ?")
		args = append(args, time.Now())
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEvents returns events matching the filter, most recent date first.
func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]model.Event, error) {
	where, args := buildEventFilter(arg)
	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY date DESC`
	if arg.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", arg.Limit, arg.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// CountEvents returns the number of events matching the filter.
func (q *Queries) CountEvents(ctx context.Context, arg ListEventsParams) (int64, error) {
	where, args := buildEventFilter(arg)
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n)
	return n, err
}

// ListEventsByCreator returns events created by a user, newest first.
func (q *Queries) ListEventsByCreator(ctx context.Context, userID int64) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE created_by = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEventsRegisteredBy returns events a user is registered for, by date descending.
func (q *Queries) ListEventsRegisteredBy(ctx context.Context, userID int64) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT e.id, e.title, e.slug, e.description, e.date, e.location, e.image_path, e.duration,
       e.requirements, e.event_type, e.is_official, e.max_capacity, e.organization_id,
       e.created_by, e.created_at, e.updated_at
FROM events e
JOIN event_registrations r ON r.event_id = e.id
WHERE r.user_id = ?
ORDER BY e.date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// UpdateEventParams holds the editable event fields.
type UpdateEventParams struct {
	ID             int64
	Title          string
	Description    string
	Date           time.Time
	Location       string
	Duration       int64
	Requirements   string
	EventType      string
	IsOfficial     bool
	MaxCapacity    int64
	OrganizationID sql.NullInt64
	UpdatedAt      time.Time
}

// UpdateEvent updates the mutable event fields.
func (q *Queries) UpdateEvent(ctx context.Context, arg UpdateEventParams) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE events
SET title = ?, description = ?, date = ?, location = ?, duration = ?, requirements = ?,
    event_type = ?, is_official = ?, max_capacity = ?, organization_id = ?, updated_at = ?
WHERE id = ?`,
		arg.Title, arg.Description, arg.Date, arg.Location, arg.Duration, arg.Requirements,
		arg.EventType, arg.IsOfficial, arg.MaxCapacity, arg.OrganizationID, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateEventImage sets the stored image path.
func (q *Queries) UpdateEventImage(ctx context.Context, id int64, imagePath sql.NullString) error {
	_, err := q.db.ExecContext(ctx, `UPDATE events SET image_path = ? WHERE id = ?`, imagePath, id)
	return err
}

// DeleteEvent removes an event; registrations and comments cascade.
func (q *Queries) DeleteEvent(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}

// DeleteExpiredEvents removes events whose date has passed.
// Returns the number of deleted events.
func (q *Queries) DeleteExpiredEvents(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE date < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEvent(row *sql.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.Date, &e.Location, &e.ImagePath,
		&e.Duration, &e.Requirements, &e.EventType, &e.IsOfficial, &e.MaxCapacity,
		&e.OrganizationID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.Date, &e.Location,
			&e.ImagePath, &e.Duration, &e.Requirements, &e.EventType, &e.IsOfficial,
			&e.MaxCapacity, &e.OrganizationID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
