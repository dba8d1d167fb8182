package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend is a process-local device store. It backs the gateway when no
// calendar account is configured and doubles as the fake in tests.
type MemoryBackend struct {
	mu        sync.Mutex
	calendars []Calendar
	entries   []Entry
	source    Source

	// Permission is returned by RequestPermission.
	Permission Permission
	// Latency delays every listing call.
	Latency time.Duration
	// BeforeList runs before each Calendars call with the 1-based call number.
	BeforeList func(call int)

	listCalls   int
	createCalls int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		Permission: PermissionGranted,
		source:     Source{ID: "default", Name: "Default", Type: "local"},
	}
}

func (m *MemoryBackend) RequestPermission(ctx context.Context, entityType EntityType) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Permission, nil
}

func (m *MemoryBackend) Calendars(ctx context.Context, entityType EntityType) ([]Calendar, error) {
	m.mu.Lock()
	m.listCalls++
	call := m.listCalls
	hook := m.BeforeList
	latency := m.Latency
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Calendar
	for _, cal := range m.calendars {
		if cal.EntityType == entityType {
			out = append(out, cal)
		}
	}
	return out, nil
}

func (m *MemoryBackend) DefaultSource(ctx context.Context) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source, nil
}

func (m *MemoryBackend) CreateCalendar(ctx context.Context, cal NewCalendar) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	id := uuid.NewString()
	m.calendars = append(m.calendars, Calendar{
		ID:         id,
		Title:      cal.Title,
		Color:      cal.Color,
		EntityType: cal.EntityType,
		Source:     cal.Source,
	})
	return id, nil
}

func (m *MemoryBackend) CreateEntry(ctx context.Context, calendarID string, entry Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CalendarID = calendarID
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *MemoryBackend) Entries(ctx context.Context, calendarIDs []string, status EntryStatus, from, to time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		wanted[id] = true
	}

	var out []Entry
	for _, e := range m.entries {
		if !wanted[e.CalendarID] {
			continue
		}
		switch status {
		case StatusIncomplete:
			if e.Completed {
				continue
			}
		case StatusCompleted:
			if !e.Completed {
				continue
			}
		}
		if !inWindow(e, from, to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// AddCalendar seeds a calendar and returns its id.
func (m *MemoryBackend) AddCalendar(cal Calendar) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cal.ID == "" {
		cal.ID = uuid.NewString()
	}
	m.calendars = append(m.calendars, cal)
	return cal.ID
}

// AllCalendars returns a snapshot of every stored calendar.
func (m *MemoryBackend) AllCalendars() []Calendar {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Calendar(nil), m.calendars...)
}

// AllEntries returns a snapshot of every stored entry.
func (m *MemoryBackend) AllEntries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// CreateCalls returns how many calendars were created through the backend.
func (m *MemoryBackend) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// SetDefaultSource replaces the account returned by DefaultSource.
func (m *MemoryBackend) SetDefaultSource(source Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
}

// inWindow matches on the due date, falling back to the start date; undated
// entries always match.
func inWindow(e Entry, from, to time.Time) bool {
	at := e.DueDate
	if at == nil {
		at = e.StartDate
	}
	if at == nil {
		return true
	}
	return !at.Before(from) && !at.After(to)
}
