package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle of the application calendar in one partition.
type State int

const (
	StateUninitialized State = iota
	StateNotFound
	StateFound
)

func (s State) String() string {
	switch s {
	case StateNotFound:
		return "not_found"
	case StateFound:
		return "found"
	default:
		return "uninitialized"
	}
}

type partition struct {
	state State
	id    string
}

// Gateway owns the single application calendar per partition of the device
// store. All get-or-create calls are serialized so that concurrent callers
// in this process never create duplicates.
type Gateway struct {
	backend  Backend
	platform Platform
	title    string
	color    string
	logger   *log.Logger

	createMu sync.Mutex

	mu    sync.RWMutex
	parts map[EntityType]*partition
}

// NewGateway returns a gateway that manages the calendar named title.
func NewGateway(backend Backend, platform Platform, title, color string, logger *log.Logger) *Gateway {
	return &Gateway{
		backend:  backend,
		platform: platform,
		title:    title,
		color:    color,
		logger:   logger,
		parts: map[EntityType]*partition{
			EntityEvent:    {},
			EntityReminder: {},
		},
	}
}

// Platform returns the device family the gateway was configured for.
func (g *Gateway) Platform() Platform {
	return g.platform
}

// Title returns the application calendar title.
func (g *Gateway) Title() string {
	return g.title
}

// State returns the lifecycle state and cached calendar id of a partition.
func (g *Gateway) State(entityType EntityType) (State, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.parts[entityType]
	if !ok {
		return StateUninitialized, ""
	}
	return p.state, p.id
}

// CalendarID returns the cached calendar id when the partition is in StateFound.
func (g *Gateway) CalendarID(entityType EntityType) (string, bool) {
	state, id := g.State(entityType)
	return id, state == StateFound
}

// Discover requests permission and looks the application calendar up by exact
// title. Without a granted permission the partition state is left untouched.
// ErrNotFound is returned when the lookup succeeded but found nothing.
func (g *Gateway) Discover(ctx context.Context, entityType EntityType) (string, error) {
	permission, err := g.backend.RequestPermission(ctx, entityType)
	if err != nil {
		return "", fmt.Errorf("request %s permission: %w", entityType, err)
	}
	if permission != PermissionGranted {
		g.logger.Printf("calendar: %s permission %s", entityType, permission)
		return "", ErrPermissionDenied
	}

	cal, found, err := g.find(ctx, entityType)
	if err != nil {
		return "", err
	}
	if !found {
		g.setState(entityType, StateNotFound, "")
		return "", ErrNotFound
	}
	g.setState(entityType, StateFound, cal.ID)
	return cal.ID, nil
}

// EnsureCreated returns the id of the application calendar, creating it when
// it does not exist. Existence is re-checked immediately before creating.
func (g *Gateway) EnsureCreated(ctx context.Context, entityType EntityType) (string, error) {
	g.createMu.Lock()
	defer g.createMu.Unlock()

	id, err := g.Discover(ctx, entityType)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	// the calendar may have appeared since the previous lookup
	existing, found, err := g.find(ctx, entityType)
	if err != nil {
		return "", err
	}
	if found {
		g.logger.Printf("calendar: %q already exists with id %s", g.title, existing.ID)
		g.setState(entityType, StateFound, existing.ID)
		return existing.ID, nil
	}

	source, err := g.source(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve calendar source: %w", err)
	}

	id, err = g.backend.CreateCalendar(ctx, NewCalendar{
		Title:        g.title,
		Name:         g.title,
		Color:        g.color,
		EntityType:   entityType,
		Source:       source,
		OwnerAccount: "personal",
	})
	if err != nil {
		return "", fmt.Errorf("create %s calendar: %w", entityType, err)
	}

	g.logger.Printf("calendar: created %s calendar %q with id %s", entityType, g.title, id)
	g.setState(entityType, StateFound, id)
	return id, nil
}

// CreateEntry writes a reminder entry into calendarID. On platforms without
// native reminder lists nothing is written and an empty id is returned.
func (g *Gateway) CreateEntry(ctx context.Context, calendarID string, entry Entry) (string, error) {
	if !g.platform.SupportsReminders() {
		g.logger.Printf("calendar: native reminders are not supported on %s", g.platform)
		return "", nil
	}
	if calendarID == "" {
		return "", fmt.Errorf("calendar id is required")
	}

	entry.CalendarID = calendarID
	id, err := g.backend.CreateEntry(ctx, calendarID, entry)
	if err != nil {
		return "", fmt.Errorf("create reminder entry: %w", err)
	}
	return id, nil
}

// Entries returns the entries of calendarID in [from, to] with the given status.
func (g *Gateway) Entries(ctx context.Context, calendarID string, status EntryStatus, from, to time.Time) ([]Entry, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	entries, err := g.backend.Entries(ctx, []string{calendarID}, status, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reminder entries: %w", err)
	}
	return entries, nil
}

func (g *Gateway) find(ctx context.Context, entityType EntityType) (Calendar, bool, error) {
	calendars, err := g.backend.Calendars(ctx, entityType)
	if err != nil {
		return Calendar{}, false, fmt.Errorf("list %s calendars: %w", entityType, err)
	}
	for _, cal := range calendars {
		if cal.Title == g.title {
			return cal, true, nil
		}
	}
	return Calendar{}, false, nil
}

// source picks the account for a new calendar: the real default account on
// iOS, a local account everywhere else.
func (g *Gateway) source(ctx context.Context) (Source, error) {
	if g.platform == PlatformIOS {
		return g.backend.DefaultSource(ctx)
	}
	return Source{
		Name:           g.title,
		Type:           "local",
		IsLocalAccount: true,
	}, nil
}

func (g *Gateway) setState(entityType EntityType, state State, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.parts[entityType]
	if !ok {
		p = &partition{}
		g.parts[entityType] = p
	}
	p.state = state
	p.id = id
}

// DescribeState is a log helper.
func (g *Gateway) DescribeState() string {
	var parts []string
	for _, et := range []EntityType{EntityEvent, EntityReminder} {
		state, id := g.State(et)
		parts = append(parts, fmt.Sprintf("%s=%s(%s)", et, state, id))
	}
	return strings.Join(parts, " ")
}
