// Package calendar manages the application's named calendar inside the
// device calendar/reminders store and writes reminder entries into it.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned when access to the device store was not granted.
	ErrPermissionDenied = errors.New("calendar permission not granted")
	// ErrNotFound is returned by Discover when no calendar carries the application title.
	ErrNotFound = errors.New("calendar not found")
)

// EntityType selects one partition of the device store. Event calendars and
// reminder lists are separate namespaces.
type EntityType string

const (
	EntityEvent    EntityType = "event"
	EntityReminder EntityType = "reminder"
)

// Permission is the answer of the device store to an access request.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// Platform names the device family. Only some families offer native reminder lists.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// SupportsReminders reports whether the platform has native reminder lists.
func (p Platform) SupportsReminders() bool {
	return p == PlatformIOS
}

// Source is the account a calendar is attached to.
type Source struct {
	ID             string
	Name           string
	Type           string
	IsLocalAccount bool
}

// Calendar is a container in the device store.
type Calendar struct {
	ID         string
	Title      string
	Color      string
	EntityType EntityType
	Source     Source
}

// NewCalendar describes a calendar to be created.
type NewCalendar struct {
	Title        string
	Name         string
	Color        string
	EntityType   EntityType
	Source       Source
	OwnerAccount string
}

// EntryStatus filters reminder entries by completion.
type EntryStatus string

const (
	StatusAny        EntryStatus = ""
	StatusIncomplete EntryStatus = "incomplete"
	StatusCompleted  EntryStatus = "completed"
)

// Entry is a reminder entry stored in a device calendar.
type Entry struct {
	ID         string
	CalendarID string
	Title      string
	Notes      string
	StartDate  *time.Time
	DueDate    *time.Time
	Completed  bool
}

// Backend is the contract of the device calendar subsystem.
type Backend interface {
	RequestPermission(ctx context.Context, entityType EntityType) (Permission, error)
	Calendars(ctx context.Context, entityType EntityType) ([]Calendar, error)
	DefaultSource(ctx context.Context) (Source, error)
	CreateCalendar(ctx context.Context, cal NewCalendar) (string, error)
	CreateEntry(ctx context.Context, calendarID string, entry Entry) (string, error)
	Entries(ctx context.Context, calendarIDs []string, status EntryStatus, from, to time.Time) ([]Entry, error)
}
