package store

import (
	"context"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

// CreateRegistration registers a user for an event. The (user, event) unique
// constraint rejects duplicates.
func (q *Queries) CreateRegistration(ctx context.Context, userID, eventID int64, at time.Time) (model.Registration, error) {
	var r model.Registration
	err := q.db.QueryRowContext(ctx, `
INSERT INTO event_registrations (user_id, event_id, registered_at)
VALUES (?, ?, ?)
RETURNING id, user_id, event_id, registered_at`, userID, eventID, at).
		Scan(&r.ID, &r.UserID, &r.EventID, &r.RegisteredAt)
	return r, err
}

// GetRegistration returns the registration for a (user, event) pair.
func (q *Queries) GetRegistration(ctx context.Context, userID, eventID int64) (model.Registration, error) {
	var r model.Registration
	err := q.db.QueryRowContext(ctx, `
SELECT id, user_id, event_id, registered_at
FROM event_registrations WHERE user_id = ? AND event_id = ?`, userID, eventID).
		Scan(&r.ID, &r.UserID, &r.EventID, &r.RegisteredAt)
	return r, err
}

// DeleteRegistration removes a registration. Returns the number of rows deleted.
func (q *Queries) DeleteRegistration(ctx context.Context, userID, eventID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM event_registrations WHERE user_id = ? AND event_id = ?`, userID, eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountRegistrationsByEvent returns the number of registrations for an event.
func (q *Queries) CountRegistrationsByEvent(ctx context.Context, eventID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_registrations WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}

// CountRegistrations returns the total number of registrations.
func (q *Queries) CountRegistrations(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_registrations`).Scan(&n)
	return n, err
}

// Attendee is a registration joined with its user, for rosters and CSV export.
type Attendee struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// FullName returns the attendee's display name, falling back to the username.
func (a Attendee) FullName() string {
	name := a.FirstName
	if a.LastName != "" {
		if name != "" {
			name += " "
		}
		name += a.LastName
	}
	if name == "" {
		return a.Username
	}
	return name
}

// ListAttendeesByEvent returns the attendees of an event in registration order.
func (q *Queries) ListAttendeesByEvent(ctx context.Context, eventID int64) ([]Attendee, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT r.id, u.id, u.username, u.first_name, u.last_name, u.email, r.registered_at
FROM event_registrations r
JOIN users u ON u.id = r.user_id
WHERE r.event_id = ?
ORDER BY r.registered_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attendees []Attendee
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.RegistrationID, &a.UserID, &a.Username, &a.FirstName,
			&a.LastName, &a.Email, &a.RegisteredAt); err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}
