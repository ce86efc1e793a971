// Package transfer provides snapshot export/import for SphereLink data.
package transfer

import "time"

// ExportVersion is the current version of the snapshot format.
const ExportVersion = "1.0"

// ExportData represents a complete database snapshot. Entities reference
// each other by natural keys (usernames, slugs, organization names) so a
// snapshot can be loaded into a database with different row IDs.
type ExportData struct {
	Version       string               `json:"version"`
	ExportedAt    time.Time            `json:"exported_at"`
	Organizations []ExportOrg          `json:"organizations,omitempty"`
	Users         []ExportUser         `json:"users,omitempty"`
	Roles         []ExportRole         `json:"roles,omitempty"`
	Invitations   []ExportInvitation   `json:"invitations,omitempty"`
	Events        []ExportEvent        `json:"events,omitempty"`
	Registrations []ExportRegistration `json:"registrations,omitempty"`
	Comments      []ExportComment      `json:"comments,omitempty"`
	Contacts      []ExportContact      `json:"contact_messages,omitempty"`
}

// ExportOrg represents an organization.
type ExportOrg struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExportUser represents a user account. The password hash is included so
// restored accounts keep their credentials.
type ExportUser struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	PasswordHash string    `json:"password_hash"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsStaff      bool      `json:"is_staff"`
	IsActive     bool      `json:"is_active"`
	Bio          string    `json:"bio,omitempty"`
	PhotoPath    string    `json:"photo_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExportRole represents a role assignment within an organization.
type ExportRole struct {
	Username           string    `json:"username"`
	Organization       string    `json:"organization"`
	Role               string    `json:"role"`
	IsActive           bool      `json:"is_active"`
	AssignedAt         time.Time `json:"assigned_at"`
	AssignedByUsername string    `json:"assigned_by,omitempty"`
}

// ExportInvitation represents a pending or settled invitation.
type ExportInvitation struct {
	Organization      string     `json:"organization"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	Token             string     `json:"token"`
	Status            string     `json:"status"`
	InvitedByUsername string     `json:"invited_by"`
	ExpiresAt         time.Time  `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	RespondedAt       *time.Time `json:"responded_at,omitempty"`
}

// ExportEvent represents an event.
type ExportEvent struct {
	Title             string    `json:"title"`
	Slug              string    `json:"slug"`
	Description       string    `json:"description,omitempty"`
	Date              time.Time `json:"date"`
	Location          string    `json:"location,omitempty"`
	ImagePath         string    `json:"image_path,omitempty"`
	Duration          int64     `json:"duration"`
	Requirements      string    `json:"requirements,omitempty"`
	EventType         string    `json:"event_type"`
	IsOfficial        bool      `json:"is_official"`
	MaxCapacity       int64     `json:"max_capacity"`
	Organization      string    `json:"organization,omitempty"`
	CreatedByUsername string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ExportRegistration links a user to an event.
type ExportRegistration struct {
	Username     string    `json:"username"`
	EventSlug    string    `json:"event_slug"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ExportComment represents a comment on an event.
type ExportComment struct {
	Username  string    `json:"username"`
	EventSlug string    `json:"event_slug"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportContact represents a contact/support message.
type ExportContact struct {
	Email      string    `json:"email"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	AdminNotes string    `json:"admin_notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ImportOptions configures snapshot loading.
type ImportOptions struct {
	// IgnoreUnknown accepts snapshot documents containing fields this
	// version does not recognize instead of rejecting them.
	IgnoreUnknown bool
	// DryRun validates and counts without writing anything.
	DryRun bool
}

// ImportResult summarizes what an import did (or would do).
type ImportResult struct {
	DryRun   bool           `json:"dry_run"`
	Imported map[string]int `json:"imported"`
	Errors   []ImportError  `json:"errors,omitempty"`
}

// ImportError describes a single entity that failed to import.
type ImportError struct {
	Entity  string `json:"entity"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// NewImportResult creates an empty result.
func NewImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		DryRun:   dryRun,
		Imported: make(map[string]int),
	}
}

// AddError records an entity-level failure.
func (r *ImportResult) AddError(entity, key, message string) {
	r.Errors = append(r.Errors, ImportError{Entity: entity, Key: key, Message: message})
}

func (r *ImportResult) add(entity string) {
	r.Imported[entity]++
}
