// Package reminder drives the reminder refresh cycle and the reminder
// commands issued by the HTTP API, the chat surface and the scheduler.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pathakanu/memorymate/internal/calendar"
	"github.com/pathakanu/memorymate/internal/model"
	"github.com/pathakanu/memorymate/internal/session"
)

// ErrTitleRequired is returned when a reminder is saved without a title.
var ErrTitleRequired = errors.New("reminder title is required")

// Store is the row store the coordinator reads and writes.
type Store interface {
	Lister
	Upcoming(ctx context.Context, userID string, after time.Time) ([]model.Reminder, error)
	Create(ctx context.Context, reminder model.Reminder, userID string) (*model.Reminder, error)
	Update(ctx context.Context, reminder model.Reminder, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

// Gateway is the part of the device calendar used for mirroring reminders.
type Gateway interface {
	Platform() calendar.Platform
	CalendarID(entityType calendar.EntityType) (string, bool)
	EnsureCreated(ctx context.Context, entityType calendar.EntityType) (string, error)
	Entries(ctx context.Context, calendarID string, status calendar.EntryStatus, from, to time.Time) ([]calendar.Entry, error)
	CreateEntry(ctx context.Context, calendarID string, entry calendar.Entry) (string, error)
}

// Coordinator runs refresh cycles against the session user's reminders.
type Coordinator struct {
	sessions session.Reader
	store    Store
	gateway  Gateway
	strategy Strategy
	view     *ViewModel
	window   time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithStrategy replaces the default FullReplaceSync strategy.
func WithStrategy(strategy Strategy) Option {
	return func(c *Coordinator) {
		c.strategy = strategy
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator wires a coordinator. windowDays bounds the native pull on
// both sides of now.
func NewCoordinator(sessions session.Reader, store Store, gateway Gateway, windowDays int, logger *log.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		store:    store,
		gateway:  gateway,
		view:     NewViewModel(),
		window:   time.Duration(windowDays) * 24 * time.Hour,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.strategy == nil {
		c.strategy = NewFullReplaceSync(store)
	}
	return c
}

// View returns the view model updated by Refresh.
func (c *Coordinator) View() *ViewModel {
	return c.view
}

// RefreshResult summarises one refresh cycle.
type RefreshResult struct {
	Skipped       bool
	NativeEntries int
	Reminders     int
	Strategy      string
}

// Refresh pulls native entries when the platform has them and then applies
// the sync strategy. Without a session it returns immediately. Calendar
// failures are logged and never block the store read; the returned error
// only reports a failed store read.
func (c *Coordinator) Refresh(ctx context.Context) (RefreshResult, error) {
	current := c.sessions.Current()
	if current == nil || current.UserID == "" {
		return RefreshResult{Skipped: true}, nil
	}

	result := RefreshResult{Strategy: c.strategy.Name()}
	if c.gateway.Platform().SupportsReminders() {
		entries, err := c.pullNative(ctx)
		if err != nil {
			c.logger.Printf("reminder: native pull skipped: %v", err)
		}
		result.NativeEntries = len(entries)
	}

	err := c.strategy.Apply(ctx, current.UserID, c.view)
	c.view.MarkRefreshed(c.now())
	result.Reminders = len(c.view.Reminders())
	if err != nil {
		c.logger.Printf("reminder: refresh for %s: %v", current.UserID, err)
		return result, err
	}
	return result, nil
}

// pullNative reads incomplete entries around now. They are not written back to the store.
func (c *Coordinator) pullNative(ctx context.Context) ([]calendar.Entry, error) {
	calendarID, err := c.gateway.EnsureCreated(ctx, calendar.EntityReminder)
	if err != nil {
		return nil, err
	}
	now := c.now()
	return c.gateway.Entries(ctx, calendarID, calendar.StatusIncomplete, now.Add(-c.window), now.Add(c.window))
}

// Input carries the user-editable reminder fields.
type Input struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// CreateResult is the outcome of CreateReminder.
type CreateResult struct {
	Reminder *model.Reminder `json:"reminder"`
	MirrorID string          `json:"mirror_id,omitempty"`
}

// UpdateResult is the outcome of UpdateReminder.
type UpdateResult struct {
	// NativeStale is set when a device mirror may exist and must be edited by hand.
	NativeStale bool `json:"native_stale"`
}

// CreateReminder saves a reminder and mirrors it into the device calendar
// when the platform has native reminders. The view model is left alone.
func (c *Coordinator) CreateReminder(ctx context.Context, in Input) (*CreateResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}

	saved, err := c.store.Create(ctx, model.Reminder{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DueDate:     in.DueDate,
	}, userID)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Reminder: saved}
	if !c.gateway.Platform().SupportsReminders() {
		return result, nil
	}

	calendarID, err := c.reminderCalendar(ctx)
	if err != nil {
		c.logger.Printf("reminder: mirror for %s skipped: %v", saved.ID, err)
		return result, nil
	}
	start := c.now()
	mirrorID, err := c.gateway.CreateEntry(ctx, calendarID, calendar.Entry{
		Title:     saved.Title,
		Notes:     saved.Description,
		StartDate: &start,
		DueDate:   saved.DueDate,
	})
	if err != nil {
		c.logger.Printf("reminder: mirror for %s failed: %v", saved.ID, err)
		return result, nil
	}
	result.MirrorID = mirrorID
	return result, nil
}

// UpdateReminder writes the new fields to the store only.
func (c *Coordinator) UpdateReminder(ctx context.Context, id string, in Input) (*UpdateResult, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}

	err = c.store.Update(ctx, model.Reminder{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DueDate:     in.DueDate,
	}, userID)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{NativeStale: c.gateway.Platform().SupportsReminders()}, nil
}

// DeleteReminder removes a reminder from the store only.
func (c *Coordinator) DeleteReminder(ctx context.Context, id string) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, id, userID)
}

// UpcomingReminders returns reminders of the session user due at or after after.
func (c *Coordinator) UpcomingReminders(ctx context.Context, after time.Time) ([]model.Reminder, error) {
	userID, err := c.userID()
	if err != nil {
		return []model.Reminder{}, err
	}
	return c.store.Upcoming(ctx, userID, after)
}

// ListReminders reads the session user's reminders straight from the store.
func (c *Coordinator) ListReminders(ctx context.Context) ([]model.Reminder, error) {
	userID, err := c.userID()
	if err != nil {
		return []model.Reminder{}, err
	}
	return c.store.List(ctx, userID)
}

func (c *Coordinator) userID() (string, error) {
	current := c.sessions.Current()
	if current == nil || current.UserID == "" {
		return "", session.ErrNoSession
	}
	return current.UserID, nil
}

func (c *Coordinator) reminderCalendar(ctx context.Context) (string, error) {
	if id, ok := c.gateway.CalendarID(calendar.EntityReminder); ok {
		return id, nil
	}
	id, err := c.gateway.EnsureCreated(ctx, calendar.EntityReminder)
	if err != nil {
		return "", fmt.Errorf("resolve reminder calendar: %w", err)
	}
	return id, nil
}

// FormatDueDate renders a due date for display, or "" when there is none.
func FormatDueDate(due *time.Time, loc *time.Location) string {
	if due == nil {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return "Due: " + due.In(loc).Format("Monday, January 2, 2006")
}
