package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spherelink/spherelink/internal/auth"
	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/util"
)

// Default credentials created by Seed.
const (
	DefaultAdminUsername  = "superadmin"
	DefaultAdminPassword  = "admin123"
	DefaultAdminEmail     = "spherelinkevents@gmail.com"
	DefaultStaffUsername  = "staff1"
	DefaultStaffPassword  = "staff123"
	DefaultMemberUsername = "member1"
	DefaultMemberPassword = "member123"
	DefaultUserPassword   = "eafit123"
)

type seedUser struct {
	username  string
	email     string
	firstName string
	lastName  string
	password  string
	superuser bool
	staff     bool
	bio       string
	role      string
}

type seedEvent struct {
	title       string
	description string
	eventType   string
	official    bool
	capacity    int64
	duration    int64
	location    string
	require     string
	daysAhead   int
}

var seedMembers = []seedUser{
	{username: "ana.garcia1", firstName: "Ana", lastName: "García"},
	{username: "carlos.rodriguez2", firstName: "Carlos", lastName: "Rodríguez"},
	{username: "maria.martinez3", firstName: "María", lastName: "Martínez"},
	{username: "juan.lopez4", firstName: "Juan", lastName: "López"},
	{username: "laura.gonzalez5", firstName: "Laura", lastName: "González"},
	{username: "diego.perez6", firstName: "Diego", lastName: "Pérez"},
	{username: "sofia.sanchez7", firstName: "Sofía", lastName: "Sánchez"},
	{username: "andres.ramirez8", firstName: "Andrés", lastName: "Ramírez"},
	{username: "camila.torres9", firstName: "Camila", lastName: "Torres"},
	{username: "sebastian.flores10", firstName: "Sebastián", lastName: "Flores"},
	{username: "valentina.rivera11", firstName: "Valentina", lastName: "Rivera"},
	{username: "nicolas.gomez12", firstName: "Nicolás", lastName: "Gómez"},
	{username: "isabella.diaz13", firstName: "Isabella", lastName: "Díaz"},
	{username: "mateo.cruz14", firstName: "Mateo", lastName: "Cruz"},
	{username: "daniela.morales15", firstName: "Daniela", lastName: "Morales"},
	{username: "alejandro.ortiz16", firstName: "Alejandro", lastName: "Ortiz"},
}

var seedEvents = []seedEvent{
	{
		title:       "Basketball Night",
		description: "Friendly basketball games under the lights. Open to all skill levels.",
		eventType:   model.EventTypeSports,
		official:    true,
		capacity:    28,
		duration:    180,
		location:    "EAFIT Sports Center, Court 2",
		require:     "Basketball shoes",
		daysAhead:   30,
	},
	{
		title:       "Morning Yoga Session",
		description: "Start your day with a guided yoga session on the lawn.",
		eventType:   model.EventTypeWellness,
		official:    true,
		capacity:    14,
		duration:    40,
		location:    "Central Garden",
		daysAhead:   35,
	},
	{
		title:       "AI and Machine Learning Workshop",
		description: "Hands-on workshop covering modern machine learning tooling and practice.",
		eventType:   model.EventTypeAcademic,
		official:    true,
		capacity:    35,
		duration:    120,
		location:    "Engineering Building, Lab 301",
		require:     "Laptop with Python installed",
		daysAhead:   40,
	},
	{
		title:       "Music Festival",
		description: "An evening of live music featuring student bands and invited artists.",
		eventType:   model.EventTypeOther,
		official:    true,
		capacity:    56,
		duration:    180,
		location:    "Main Auditorium",
		daysAhead:   25,
	},
	{
		title:       "Football Match",
		description: "Inter-faculty football match. Come play or cheer for your team.",
		eventType:   model.EventTypeSports,
		official:    true,
		capacity:    50,
		duration:    120,
		location:    "EAFIT Stadium",
		require:     "Football boots",
		daysAhead:   32,
	},
	{
		title:       "Mental Health Talk",
		description: "Open conversation about stress management and student wellbeing.",
		eventType:   model.EventTypeWellness,
		official:    true,
		capacity:    17,
		duration:    60,
		location:    "Building 38, Room 101",
		daysAhead:   38,
	},
	{
		title:       "Career Fair EAFIT 2025-2",
		description: "Meet recruiters from leading companies and explore internship openings.",
		eventType:   model.EventTypeOther,
		official:    true,
		capacity:    48,
		duration:    250,
		location:    "Convention Center",
		require:     "Printed resume",
		daysAhead:   45,
	},
	{
		title:       "Real Madrid vs Barcelona Match Night",
		description: "Watch the clásico together on the big screen. Snacks provided.",
		eventType:   model.EventTypeSports,
		official:    false,
		capacity:    9,
		duration:    200,
		location:    "Student Lounge",
		daysAhead:   42,
	},
}

// Seed creates the initial organization, accounts, events and registrations.
// Every entity is looked up before insertion, so running Seed repeatedly
// leaves the database unchanged.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)
	now := time.Now()

	org, err := seedOrganization(ctx, queries, now)
	if err != nil {
		return err
	}

	admin, err := seedAccount(ctx, queries, now, seedUser{
		username:  DefaultAdminUsername,
		email:     DefaultAdminEmail,
		firstName: "Matias",
		lastName:  "Martinez",
		password:  DefaultAdminPassword,
		superuser: true,
		staff:     true,
	})
	if err != nil {
		return err
	}

	staff, err := seedAccount(ctx, queries, now, seedUser{
		username:  DefaultStaffUsername,
		email:     "staff1@eafit.edu.co",
		firstName: "Carolina",
		lastName:  "Zapata",
		password:  DefaultStaffPassword,
		staff:     true,
		bio:       "EAFIT STAFF.",
		role:      model.RoleStaff,
	})
	if err != nil {
		return err
	}
	if err := seedRole(ctx, queries, now, staff.ID, org.ID, model.RoleStaff, util.NullInt64FromValue(admin.ID)); err != nil {
		return err
	}

	member, err := seedAccount(ctx, queries, now, seedUser{
		username:  DefaultMemberUsername,
		email:     "tomas@eafit.edu.co",
		firstName: "Tomás",
		lastName:  "Giraldo",
		password:  DefaultMemberPassword,
	})
	if err != nil {
		return err
	}
	if err := seedRole(ctx, queries, now, member.ID, org.ID, model.RoleMember, util.NullInt64FromValue(staff.ID)); err != nil {
		return err
	}

	members := make([]model.User, 0, len(seedMembers))
	for _, su := range seedMembers {
		su.email = su.username + "@eafit.edu.co"
		su.password = DefaultUserPassword
		su.bio = "EAFIT community member."
		u, err := seedAccount(ctx, queries, now, su)
		if err != nil {
			return err
		}
		if err := seedRole(ctx, queries, now, u.ID, org.ID, model.RoleMember, util.NullInt64FromValue(staff.ID)); err != nil {
			return err
		}
		members = append(members, u)
	}

	events := make([]model.Event, 0, len(seedEvents))
	for _, se := range seedEvents {
		ev, err := seedOneEvent(ctx, queries, now, se, org.ID, staff.ID)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	if err := seedRegistrations(ctx, queries, now, events, staff, member, members); err != nil {
		return err
	}

	slog.Info("seed complete",
		"organization", org.Name,
		"users", 3+len(members),
		"events", len(events),
	)
	return nil
}

func seedOrganization(ctx context.Context, q *Queries, now time.Time) (model.Organization, error) {
	const name = "EAFIT University"

	org, err := q.GetOrganizationByName(ctx, name)
	if err == nil {
		return org, nil
	}
	if err != sql.ErrNoRows {
		return model.Organization{}, fmt.Errorf("checking for organization: %w", err)
	}

	org, err = q.CreateOrganization(ctx, CreateOrganizationParams{
		Name:        name,
		Slug:        util.Slugify(name),
		Description: "Higher Education Institution focused on technology and innovation",
		Website:     "https://www.eafit.edu.co",
		Address:     "Carrera 49 #7 Sur-50, Medellín, Colombia",
		Phone:       "+57 4 261-9500",
		Email:       "info@eafit.edu.co",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Organization{}, fmt.Errorf("creating organization: %w", err)
	}
	slog.Info("created organization", "id", org.ID, "name", org.Name)
	return org, nil
}

func seedAccount(ctx context.Context, q *Queries, now time.Time, su seedUser) (model.User, error) {
	user, err := q.GetUserByUsername(ctx, su.username)
	if err == nil {
		return user, nil
	}
	if err != sql.ErrNoRows {
		return model.User{}, fmt.Errorf("checking for user %s: %w", su.username, err)
	}

	passwordHash, err := auth.HashPassword(su.password)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password for %s: %w", su.username, err)
	}

	user, err = q.CreateUser(ctx, CreateUserParams{
		Username:     su.username,
		Email:        su.email,
		FirstName:    su.firstName,
		LastName:     su.lastName,
		PasswordHash: passwordHash,
		IsSuperuser:  su.superuser,
		IsStaff:      su.staff,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("creating user %s: %w", su.username, err)
	}

	if su.bio != "" {
		if _, err := q.CreateProfile(ctx, CreateProfileParams{
			UserID: user.ID,
			Bio:    util.NullStringFromValue(su.bio),
		}); err != nil {
			return model.User{}, fmt.Errorf("creating profile for %s: %w", su.username, err)
		}
	}

	slog.Info("created user", "id", user.ID, "username", user.Username)
	return user, nil
}

func seedRole(ctx context.Context, q *Queries, now time.Time, userID, orgID int64, role string, assignedBy sql.NullInt64) error {
	_, err := q.GetUserRole(ctx, userID, orgID)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking role for user %d: %w", userID, err)
	}

	if _, err := q.CreateUserRole(ctx, CreateUserRoleParams{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		IsActive:       true,
		AssignedAt:     now,
		AssignedBy:     assignedBy,
	}); err != nil {
		return fmt.Errorf("assigning role %s to user %d: %w", role, userID, err)
	}
	return nil
}

func seedOneEvent(ctx context.Context, q *Queries, now time.Time, se seedEvent, orgID, creatorID int64) (model.Event, error) {
	ev, err := q.GetEventByTitleInOrganization(ctx, se.title, orgID)
	if err == nil {
		return ev, nil
	}
	if err != sql.ErrNoRows {
		return model.Event{}, fmt.Errorf("checking for event %q: %w", se.title, err)
	}

	date := now.AddDate(0, 0, se.daysAhead)
	ev, err = q.CreateEvent(ctx, CreateEventParams{
		Title:          se.title,
		Slug:           util.Slugify(se.title),
		Description:    se.description,
		Date:           date,
		Location:       se.location,
		Duration:       se.duration,
		Requirements:   se.require,
		EventType:      se.eventType,
		IsOfficial:     se.official,
		MaxCapacity:    se.capacity,
		OrganizationID: util.NullInt64FromValue(orgID),
		CreatedBy:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("creating event %q: %w", se.title, err)
	}
	slog.Info("created event", "id", ev.ID, "title", ev.Title)
	return ev, nil
}

// seedRegistrations assigns each seeded member to a fixed rotation of
// events: member i gets 2+(i%4) events starting at index i%len(events).
// The assignment is a pure function of position, so every run produces
// the same rows.
func seedRegistrations(ctx context.Context, q *Queries, now time.Time, events []model.Event, staff, member model.User, members []model.User) error {
	if len(events) == 0 {
		return nil
	}

	register := func(userID, eventID int64) error {
		_, err := q.GetRegistration(ctx, userID, eventID)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking registration user=%d event=%d: %w", userID, eventID, err)
		}
		if _, err := q.CreateRegistration(ctx, userID, eventID, now); err != nil {
			return fmt.Errorf("registering user=%d event=%d: %w", userID, eventID, err)
		}
		return nil
	}

	if err := register(staff.ID, events[0].ID); err != nil {
		return err
	}
	if len(events) > 1 {
		if err := register(member.ID, events[1].ID); err != nil {
			return err
		}
	}

	for i, u := range members {
		count := 2 + i%4
		start := i % len(events)
		for j := 0; j < count; j++ {
			ev := events[(start+j)%len(events)]
			if err := register(u.ID, ev.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
