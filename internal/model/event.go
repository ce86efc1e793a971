// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Event types for categorized browsing.
const (
	EventTypeSports   = "sports"
	EventTypeWellness = "wellness"
	EventTypeAcademic = "academic"
	EventTypeOther    = "other"
)

// EventTypes lists the valid event categories in display order.
var EventTypes = []string{EventTypeSports, EventTypeWellness, EventTypeAcademic, EventTypeOther}

// ValidEventType reports whether t is a known event category.
func ValidEventType(t string) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event represents a single scheduled event.
type Event struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Slug           string         `json:"slug"`
	Description    string         `json:"description"`
	Date           time.Time      `json:"date"`
	Location       string         `json:"location"`
	ImagePath      sql.NullString `json:"image_path,omitempty"`
	Duration       int64          `json:"duration"` // minutes
	Requirements   string         `json:"requirements,omitempty"`
	EventType      string         `json:"event_type"`
	IsOfficial     bool           `json:"is_official"`
	MaxCapacity    int64          `json:"max_capacity"`
	OrganizationID sql.NullInt64  `json:"organization_id,omitempty"`
	CreatedBy      int64          `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsPast reports whether the event date has already passed.
func (e *Event) IsPast() bool {
	return e.Date.Before(time.Now())
}

// AvailableSpots returns the remaining capacity given the current registration count.
func (e *Event) AvailableSpots(registered int64) int64 {
	if registered >= e.MaxCapacity {
		return 0
	}
	return e.MaxCapacity - registered
}

// IsFull reports whether the event has reached capacity.
func (e *Event) IsFull(registered int64) bool {
	return registered >= e.MaxCapacity
}

// RegistrationPercentage returns the occupancy as a 0-100 percentage.
func (e *Event) RegistrationPercentage(registered int64) float64 {
	if e.MaxCapacity == 0 {
		return 0
	}
	return float64(registered) / float64(e.MaxCapacity) * 100
}

// Registration records a user's participation in an event.
// The (user, event) pair is unique.
type Registration struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	EventID      int64     `json:"event_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Comment is a user comment on an event.
type Comment struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is an in-app message for a user.
type Notification struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Message   string         `json:"message"`
	Link      sql.NullString `json:"link,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}
