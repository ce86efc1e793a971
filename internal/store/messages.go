package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

// CreateComment adds a comment to an event.
func (q *Queries) CreateComment(ctx context.Context, eventID, userID int64, body string, at time.Time) (model.Comment, error) {
	var c model.Comment
	err := q.db.QueryRowContext(ctx, `
INSERT INTO event_comments (event_id, user_id, body, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, event_id, user_id, body, created_at`, eventID, userID, body, at).
		Scan(&c.ID, &c.EventID, &c.UserID, &c.Body, &c.CreatedAt)
	return c, err
}

// EventComment is a comment joined with its author's username.
type EventComment struct {
	model.Comment
	Username string `json:"username"`
}

// ListCommentsByEvent returns an event's comments, oldest first.
func (q *Queries) ListCommentsByEvent(ctx context.Context, eventID int64) ([]EventComment, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT c.id, c.event_id, c.user_id, c.body, c.created_at, u.username
FROM event_comments c
JOIN users u ON u.id = c.user_id
WHERE c.event_id = ?
ORDER BY c.created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []EventComment
	for rows.Next() {
		var c EventComment
		if err := rows.Scan(&c.ID, &c.EventID, &c.UserID, &c.Body, &c.CreatedAt, &c.Username); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateNotification adds an in-app notification for a user.
func (q *Queries) CreateNotification(ctx context.Context, userID int64, message string, link sql.NullString, at time.Time) (model.Notification, error) {
	var n model.Notification
	err := q.db.QueryRowContext(ctx, `
INSERT INTO notifications (user_id, message, link, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, user_id, message, link, is_read, created_at`, userID, message, link, at).
		Scan(&n.ID, &n.UserID, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt)
	return n, err
}

// ListNotificationsByUser returns a user's notifications, newest first.
func (q *Queries) ListNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, user_id, message, link, is_read, created_at
FROM notifications WHERE user_id = ?
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications as read.
// Returns the number of rows changed.
func (q *Queries) MarkNotificationRead(ctx context.Context, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadNotifications returns the user's unread notification count.
func (q *Queries) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	return n, err
}

// CreateContactMessageParams holds the fields for a help request.
type CreateContactMessageParams struct {
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const contactColumns = `id, email, subject, message, status, admin_notes, created_at, updated_at`

// CreateContactMessage stores an anonymous help request.
func (q *Queries) CreateContactMessage(ctx context.Context, arg CreateContactMessageParams) (model.ContactMessage, error) {
	row := q.db.QueryRowContext(ctx, `
INSERT INTO contact_messages (email, subject, message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING `+contactColumns,
		arg.Email, arg.Subject, arg.Message, arg.CreatedAt, arg.UpdatedAt)
	return scanContactMessage(row)
}

// GetContactMessageByID returns the contact message with the given ID.
func (q *Queries) GetContactMessageByID(ctx context.Context, id int64) (model.ContactMessage, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contact_messages WHERE id = ?`, id)
	return scanContactMessage(row)
}

// ListContactMessages returns contact messages, newest first, optionally
// filtered by status.
func (q *Queries) ListContactMessages(ctx context.Context, status string) ([]model.ContactMessage, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_messages`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.ContactMessage
	for rows.Next() {
		var m model.ContactMessage
		if err := rows.Scan(&m.ID, &m.Email, &m.Subject, &m.Message, &m.Status,
			&m.AdminNotes, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpdateContactMessageParams holds the moderation fields.
type UpdateContactMessageParams struct {
	ID         int64
	Status     string
	AdminNotes sql.NullString
	UpdatedAt  time.Time
}

// UpdateContactMessage records a moderation decision.
func (q *Queries) UpdateContactMessage(ctx context.Context, arg UpdateContactMessageParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE contact_messages SET status = ?, admin_notes = ?, updated_at = ? WHERE id = ?`,
		arg.Status, arg.AdminNotes, arg.UpdatedAt, arg.ID)
	return err
}

func scanContactMessage(row *sql.Row) (model.ContactMessage, error) {
	var m model.ContactMessage
	err := row.Scan(&m.ID, &m.Email, &m.Subject, &m.Message, &m.Status,
		&m.AdminNotes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
