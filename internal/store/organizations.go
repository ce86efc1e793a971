package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

// CreateOrganizationParams holds the fields for creating an organization.
type CreateOrganizationParams struct {
	Name        string
	Slug        string
	Description string
	Website     string
	Address     string
	Phone       string
	Email       string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const organizationColumns = `id, name, slug, description, website, address, phone, email,
       logo_path, is_active, created_at, updated_at`

// CreateOrganization inserts a new organization and returns the stored row.
func (q *Queries) CreateOrganization(ctx context.Context, arg CreateOrganizationParams) (model.Organization, error) {
	row := q.db.QueryRowContext(ctx, `
INSERT INTO organizations (name, slug, description, website, address, phone, email, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+organizationColumns,
		arg.Name, arg.Slug, arg.Description, arg.Website, arg.Address, arg.Phone, arg.Email,
		arg.IsActive, arg.CreatedAt, arg.UpdatedAt)
	return scanOrganization(row)
}

// GetOrganizationByID returns the organization with the given ID.
func (q *Queries) GetOrganizationByID(ctx context.Context, id int64) (model.Organization, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id)
	return scanOrganization(row)
}

// GetOrganizationByName returns the organization with the given unique name.
func (q *Queries) GetOrganizationByName(ctx context.Context, name string) (model.Organization, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE name = ?`, name)
	return scanOrganization(row)
}

// ListOrganizations returns all organizations ordered by name.
func (q *Queries) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.Website, &o.Address,
			&o.Phone, &o.Email, &o.LogoPath, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// CountOrganizations returns the total number of organizations.
func (q *Queries) CountOrganizations(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&n)
	return n, err
}

// UpdateOrganizationParams holds the editable organization fields.
type UpdateOrganizationParams struct {
	ID          int64
	Name        string
	Description string
	Website     string
	Address     string
	Phone       string
	Email       string
	IsActive    bool
	UpdatedAt   time.Time
}

// UpdateOrganization updates the mutable organization fields.
func (q *Queries) UpdateOrganization(ctx context.Context, arg UpdateOrganizationParams) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE organizations
SET name = ?, description = ?, website = ?, address = ?, phone = ?, email = ?, is_active = ?, updated_at = ?
WHERE id = ?`,
		arg.Name, arg.Description, arg.Website, arg.Address, arg.Phone, arg.Email,
		arg.IsActive, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateOrganizationLogo sets the stored logo path.
func (q *Queries) UpdateOrganizationLogo(ctx context.Context, id int64, logoPath sql.NullString) error {
	_, err := q.db.ExecContext(ctx, `UPDATE organizations SET logo_path = ? WHERE id = ?`, logoPath, id)
	return err
}

// DeleteOrganization removes an organization; memberships and events cascade.
func (q *Queries) DeleteOrganization(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	return err
}

// CreateUserRoleParams holds the fields for assigning a role.
type CreateUserRoleParams struct {
	UserID         int64
	OrganizationID int64
	Role           string
	IsActive       bool
	AssignedAt     time.Time
	AssignedBy     sql.NullInt64
}

// CreateUserRole assigns a role to a user within an organization.
func (q *Queries) CreateUserRole(ctx context.Context, arg CreateUserRoleParams) (model.UserRole, error) {
	var ur model.UserRole
	err := q.db.QueryRowContext(ctx, `
INSERT INTO user_roles (user_id, organization_id, role, is_active, assigned_at, assigned_by)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, user_id, organization_id, role, is_active, assigned_at, assigned_by`,
		arg.UserID, arg.OrganizationID, arg.Role, arg.IsActive, arg.AssignedAt, arg.AssignedBy).
		Scan(&ur.ID, &ur.UserID, &ur.OrganizationID, &ur.Role, &ur.IsActive, &ur.AssignedAt, &ur.AssignedBy)
	return ur, err
}

// GetUserRole returns the role row for a (user, organization) pair.
func (q *Queries) GetUserRole(ctx context.Context, userID, organizationID int64) (model.UserRole, error) {
	var ur model.UserRole
	err := q.db.QueryRowContext(ctx, `
SELECT id, user_id, organization_id, role, is_active, assigned_at, assigned_by
FROM user_roles WHERE user_id = ? AND organization_id = ?`, userID, organizationID).
		Scan(&ur.ID, &ur.UserID, &ur.OrganizationID, &ur.Role, &ur.IsActive, &ur.AssignedAt, &ur.AssignedBy)
	return ur, err
}

// GetActiveRoleForUser returns the user's first active role in an active
// organization. Users hold at most one membership in practice.
func (q *Queries) GetActiveRoleForUser(ctx context.Context, userID int64) (model.UserRole, error) {
	var ur model.UserRole
	err := q.db.QueryRowContext(ctx, `
SELECT ur.id, ur.user_id, ur.organization_id, ur.role, ur.is_active, ur.assigned_at, ur.assigned_by
FROM user_roles ur
JOIN organizations o ON o.id = ur.organization_id
WHERE ur.user_id = ? AND ur.is_active = 1 AND o.is_active = 1
ORDER BY ur.id LIMIT 1`, userID).
		Scan(&ur.ID, &ur.UserID, &ur.OrganizationID, &ur.Role, &ur.IsActive, &ur.AssignedAt, &ur.AssignedBy)
	return ur, err
}

// HasStaffRole reports whether the user holds an active staff-or-higher role
// in any organization.
func (q *Queries) HasStaffRole(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM user_roles
WHERE user_id = ? AND is_active = 1 AND role IN ('staff', 'org_admin', 'super_admin')`, userID).Scan(&n)
	return n > 0, err
}

// OrganizationMember is a role row joined with its user.
type OrganizationMember struct {
	model.UserRole
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ListMembersByOrganization returns the role roster for an organization.
func (q *Queries) ListMembersByOrganization(ctx context.Context, organizationID int64) ([]OrganizationMember, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT ur.id, ur.user_id, ur.organization_id, ur.role, ur.is_active, ur.assigned_at, ur.assigned_by,
       u.username, u.email, u.first_name, u.last_name
FROM user_roles ur
JOIN users u ON u.id = ur.user_id
WHERE ur.organization_id = ?
ORDER BY u.username`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []OrganizationMember
	for rows.Next() {
		var m OrganizationMember
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.IsActive,
			&m.AssignedAt, &m.AssignedBy, &m.Username, &m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountActiveMembers returns the number of active memberships in an organization.
func (q *Queries) CountActiveMembers(ctx context.Context, organizationID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE organization_id = ? AND is_active = 1`, organizationID).Scan(&n)
	return n, err
}

// UpdateUserRoleParams holds the editable role fields.
type UpdateUserRoleParams struct {
	ID       int64
	Role     string
	IsActive bool
}

// UpdateUserRole changes the role or active state of a membership.
func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE user_roles SET role = ?, is_active = ? WHERE id = ?`, arg.Role, arg.IsActive, arg.ID)
	return err
}

// DeleteUserRole removes a membership.
func (q *Queries) DeleteUserRole(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM user_roles WHERE id = ?`, id)
	return err
}

// CreateInvitationParams holds the fields for creating an invitation.
type CreateInvitationParams struct {
	Email          string
	Role           string
	Token          string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	InvitedBy      int64
	OrganizationID int64
}

const invitationColumns = `id, email, role, status, token, expires_at, created_at, responded_at,
       invited_by, organization_id`

// CreateInvitation inserts a pending invitation.
func (q *Queries) CreateInvitation(ctx context.Context, arg CreateInvitationParams) (model.Invitation, error) {
	row := q.db.QueryRowContext(ctx, `
INSERT INTO organization_invitations (email, role, status, token, expires_at, created_at, invited_by, organization_id)
VALUES (?, ?, 'pending', ?, ?, ?, ?, ?)
RETURNING `+invitationColumns,
		arg.Email, arg.Role, arg.Token, arg.ExpiresAt, arg.CreatedAt, arg.InvitedBy, arg.OrganizationID)
	return scanInvitation(row)
}

// GetInvitationByToken returns the invitation with the given token.
func (q *Queries) GetInvitationByToken(ctx context.Context, token string) (model.Invitation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM organization_invitations WHERE token = ?`, token)
	return scanInvitation(row)
}

// ListInvitationsByOrganization returns all invitations for an organization,
// newest first.
func (q *Queries) ListInvitationsByOrganization(ctx context.Context, organizationID int64) ([]model.Invitation, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT `+invitationColumns+` FROM organization_invitations
WHERE organization_id = ? ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []model.Invitation
	for rows.Next() {
		var inv model.Invitation
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.Status, &inv.Token, &inv.ExpiresAt,
			&inv.CreatedAt, &inv.RespondedAt, &inv.InvitedBy, &inv.OrganizationID); err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// UpdateInvitationStatus records the response to an invitation.
func (q *Queries) UpdateInvitationStatus(ctx context.Context, id int64, status string, respondedAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE organization_invitations SET status = ?, responded_at = ? WHERE id = ?`,
		status, respondedAt, id)
	return err
}

// ExpireOverdueInvitations marks pending invitations past their expiry as
// expired. Returns the number of rows changed.
func (q *Queries) ExpireOverdueInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE organization_invitations SET status = 'expired' WHERE status = 'pending' AND expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanOrganization(row *sql.Row) (model.Organization, error) {
	var o model.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.Website, &o.Address,
		&o.Phone, &o.Email, &o.LogoPath, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanInvitation(row *sql.Row) (model.Invitation, error) {
	var inv model.Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.Status, &inv.Token, &inv.ExpiresAt,
		&inv.CreatedAt, &inv.RespondedAt, &inv.InvitedBy, &inv.OrganizationID)
	return inv, err
}
