package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

// CreateUserParams holds the fields for creating a user.
type CreateUserParams struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const createUser = `
INSERT INTO users (username, email, first_name, last_name, password_hash,
                   is_superuser, is_staff, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, username, email, first_name, last_name, password_hash,
          is_superuser, is_staff, is_active, created_at, updated_at, last_login_at`

// CreateUser inserts a new user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Username, arg.Email, arg.FirstName, arg.LastName, arg.PasswordHash,
		arg.IsSuperuser, arg.IsStaff, arg.IsActive, arg.CreatedAt, arg.UpdatedAt,
	)
	return scanUser(row)
}

const userColumns = `id, username, email, first_name, last_name, password_hash,
       is_superuser, is_staff, is_active, created_at, updated_at, last_login_at`

// GetUserByID returns the user with the given ID.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername returns the user with the given username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetUserByEmail returns the first user with the given email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id LIMIT 1`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by username.
func (q *Queries) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// UpdateUserParams holds the editable user fields.
type UpdateUserParams struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	IsStaff   bool
	IsActive  bool
	UpdatedAt time.Time
}

// UpdateUser updates the mutable user fields.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE users SET email = ?, first_name = ?, last_name = ?, is_staff = ?, is_active = ?, updated_at = ?
WHERE id = ?`,
		arg.Email, arg.FirstName, arg.LastName, arg.IsStaff, arg.IsActive, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateUserPasswordParams holds the fields for a password change.
type UpdateUserPasswordParams struct {
	ID           int64
	PasswordHash string
	UpdatedAt    time.Time
}

// UpdateUserPassword replaces a user's password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		arg.PasswordHash, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateUserLastLogin records a successful login time.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
	return err
}

// DeleteUser removes a user; dependent rows cascade.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// GetProfileByUserID returns the profile for a user.
func (q *Queries) GetProfileByUserID(ctx context.Context, userID int64) (model.Profile, error) {
	var p model.Profile
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, bio, photo_path FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.ID, &p.UserID, &p.Bio, &p.PhotoPath)
	return p, err
}

// CreateProfileParams holds the fields for creating a profile.
type CreateProfileParams struct {
	UserID int64
	Bio    sql.NullString
}

// CreateProfile inserts a profile row for a user.
func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (model.Profile, error) {
	var p model.Profile
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO profiles (user_id, bio) VALUES (?, ?) RETURNING id, user_id, bio, photo_path`,
		arg.UserID, arg.Bio).
		Scan(&p.ID, &p.UserID, &p.Bio, &p.PhotoPath)
	return p, err
}

// UpdateProfileBio updates a user's bio text.
func (q *Queries) UpdateProfileBio(ctx context.Context, userID int64, bio sql.NullString) error {
	_, err := q.db.ExecContext(ctx, `UPDATE profiles SET bio = ? WHERE user_id = ?`, bio, userID)
	return err
}

// UpdateProfilePhoto sets the stored photo path for a user's profile.
func (q *Queries) UpdateProfilePhoto(ctx context.Context, userID int64, photoPath sql.NullString) error {
	_, err := q.db.ExecContext(ctx, `UPDATE profiles SET photo_path = ? WHERE user_id = ?`, photoPath, userID)
	return err
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsSuperuser, &u.IsStaff, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	return u, err
}

func scanUserRows(rows *sql.Rows) (model.User, error) {
	var u model.User
	err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsSuperuser, &u.IsStaff, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	return u, err
}
