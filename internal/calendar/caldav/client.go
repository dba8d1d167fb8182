// Package caldav stores the application calendars in a CalDAV account.
// VTODO collections form the reminder partition, VEVENT collections the
// event partition.
package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/pathakanu/memorymate/internal/calendar"
)

const (
	// DefaultiCloudURL is the Apple iCloud CalDAV endpoint.
	DefaultiCloudURL = "https://caldav.icloud.com"

	compToDo  = "VTODO"
	compEvent = "VEVENT"
)

// Backend implements calendar.Backend on top of a CalDAV server.
type Backend struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu      sync.Mutex
	client  *caldav.Client
	homeSet string
}

var _ calendar.Backend = (*Backend)(nil)

// New creates a backend for the given account.
func New(baseURL, username, password string) *Backend {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	return &Backend{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Transport: &basicAuthTransport{
				username: username,
				password: password,
			},
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the backend has credentials.
func (b *Backend) IsConfigured() bool {
	return b.username != "" && b.password != ""
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// connect resolves the client and the calendar home set once.
func (b *Backend) connect(ctx context.Context) (*caldav.Client, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil && b.homeSet != "" {
		return b.client, b.homeSet, nil
	}

	client, err := caldav.NewClient(b.httpClient, b.baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("connect to CalDAV: %w", err)
	}
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, "", fmt.Errorf("find home set: %w", err)
	}

	b.client = client
	b.homeSet = homeSet
	return client, homeSet, nil
}

// RequestPermission maps account access onto the permission model: missing
// credentials are undetermined, rejected credentials are denied.
func (b *Backend) RequestPermission(ctx context.Context, entityType calendar.EntityType) (calendar.Permission, error) {
	if !b.IsConfigured() {
		return calendar.PermissionUndetermined, nil
	}
	if _, _, err := b.connect(ctx); err != nil {
		if isAuthFailure(err) {
			return calendar.PermissionDenied, nil
		}
		return calendar.PermissionUndetermined, err
	}
	return calendar.PermissionGranted, nil
}

// Calendars lists the collections that accept the partition's component.
func (b *Backend) Calendars(ctx context.Context, entityType calendar.EntityType) ([]calendar.Calendar, error) {
	client, homeSet, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	want := componentFor(entityType)
	var result []calendar.Calendar
	for _, cal := range cals {
		if !supports(cal.SupportedComponentSet, want) {
			continue
		}
		result = append(result, calendar.Calendar{
			ID:         cal.Path,
			Title:      cal.Name,
			EntityType: entityType,
			Source:     b.source(homeSet),
		})
	}
	return result, nil
}

// DefaultSource is the account's calendar home.
func (b *Backend) DefaultSource(ctx context.Context) (calendar.Source, error) {
	_, homeSet, err := b.connect(ctx)
	if err != nil {
		return calendar.Source{}, err
	}
	return b.source(homeSet), nil
}

func (b *Backend) source(homeSet string) calendar.Source {
	return calendar.Source{ID: homeSet, Name: b.username, Type: "caldav"}
}

// CreateCalendar issues MKCALENDAR for a new collection under the home set.
func (b *Backend) CreateCalendar(ctx context.Context, cal calendar.NewCalendar) (string, error) {
	_, homeSet, err := b.connect(ctx)
	if err != nil {
		return "", err
	}
	parent := cal.Source.ID
	if parent == "" || cal.Source.IsLocalAccount {
		parent = homeSet
	}
	path := joinPath(parent, uuid.NewString()) + "/"

	body, err := mkcalendarBody(cal.Title, cal.Color, componentFor(cal.EntityType))
	if err != nil {
		return "", err
	}
	target, err := b.resolve(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "MKCALENDAR", target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build MKCALENDAR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("MKCALENDAR %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &webdavHTTPError{Method: "MKCALENDAR", Path: path, Status: resp.StatusCode}
	}
	return path, nil
}

// CreateEntry stores the entry as a VTODO object named after its UID.
func (b *Backend) CreateEntry(ctx context.Context, calendarID string, entry calendar.Entry) (string, error) {
	client, _, err := b.connect(ctx)
	if err != nil {
		return "", err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	objectPath := joinPath(calendarID, entry.ID+".ics")
	if _, err := client.PutCalendarObject(ctx, objectPath, entryToICS(entry, time.Now())); err != nil {
		return "", fmt.Errorf("put reminder: %w", err)
	}
	return entry.ID, nil
}

// Entries queries VTODO objects of the given calendars within [from, to].
func (b *Backend) Entries(ctx context.Context, calendarIDs []string, status calendar.EntryStatus, from, to time.Time) ([]calendar.Entry, error) {
	client, _, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  compToDo,
					Start: from,
					End:   to,
				},
			},
		},
	}

	var entries []calendar.Entry
	for _, calendarID := range calendarIDs {
		if calendarID == "" {
			continue
		}
		objects, err := client.QueryCalendar(ctx, calendarID, query)
		if err != nil {
			return nil, fmt.Errorf("query calendar %s: %w", calendarID, err)
		}
		for _, obj := range objects {
			entry, ok := parseToDo(obj.Data)
			if !ok {
				continue
			}
			entry.CalendarID = calendarID
			if !matchesStatus(entry, status) {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (b *Backend) resolve(path string) (string, error) {
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse CalDAV url: %w", err)
	}
	return base.ResolveReference(&url.URL{Path: path}).String(), nil
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "Unauthorized") || strings.Contains(msg, "Forbidden")
}

type webdavHTTPError struct {
	Method string
	Path   string
	Status int
}

func (e *webdavHTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

func componentFor(entityType calendar.EntityType) string {
	if entityType == calendar.EntityEvent {
		return compEvent
	}
	return compToDo
}

// supports treats a missing component set as "all components".
func supports(set []string, comp string) bool {
	if len(set) == 0 {
		return true
	}
	for _, c := range set {
		if strings.EqualFold(c, comp) {
			return true
		}
	}
	return false
}

func matchesStatus(entry calendar.Entry, status calendar.EntryStatus) bool {
	switch status {
	case calendar.StatusIncomplete:
		return !entry.Completed
	case calendar.StatusCompleted:
		return entry.Completed
	default:
		return true
	}
}

func joinPath(dir, name string) string {
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir + name
}

// mkcalendarBody renders the MKCALENDAR request body.
func mkcalendarBody(title, color, component string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(title)); err != nil {
		return nil, fmt.Errorf("escape calendar title: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<C:mkcalendar xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:A="http://apple.com/ns/ical/">`)
	buf.WriteString(`<D:set><D:prop>`)
	fmt.Fprintf(&buf, `<D:displayname>%s</D:displayname>`, escaped.String())
	if color != "" {
		var escapedColor bytes.Buffer
		if err := xml.EscapeText(&escapedColor, []byte(color)); err != nil {
			return nil, fmt.Errorf("escape calendar color: %w", err)
		}
		fmt.Fprintf(&buf, `<A:calendar-color>%s</A:calendar-color>`, escapedColor.String())
	}
	fmt.Fprintf(&buf, `<C:supported-calendar-component-set><C:comp name="%s"/></C:supported-calendar-component-set>`, component)
	buf.WriteString(`</D:prop></D:set></C:mkcalendar>`)
	return buf.Bytes(), nil
}

// entryToICS converts an entry to a VTODO inside a VCALENDAR.
func entryToICS(entry calendar.Entry, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//MemoryMate//CalDAV//EN")

	todo := ical.NewComponent(ical.CompToDo)
	todo.Props.SetText(ical.PropUID, entry.ID)
	todo.Props.SetText(ical.PropSummary, entry.Title)
	if entry.Notes != "" {
		todo.Props.SetText(ical.PropDescription, entry.Notes)
	}
	if entry.StartDate != nil {
		todo.Props.SetDateTime(ical.PropDateTimeStart, entry.StartDate.UTC())
	}
	if entry.DueDate != nil {
		todo.Props.SetDateTime(ical.PropDue, entry.DueDate.UTC())
	}
	if entry.Completed {
		todo.Props.SetText(ical.PropStatus, "COMPLETED")
	} else {
		todo.Props.SetText(ical.PropStatus, "NEEDS-ACTION")
	}
	todo.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	cal.Children = append(cal.Children, todo)
	return cal
}

// parseToDo reads the first VTODO of a calendar object.
func parseToDo(cal *ical.Calendar) (calendar.Entry, bool) {
	if cal == nil {
		return calendar.Entry{}, false
	}
	for _, comp := range cal.Children {
		if comp.Name != ical.CompToDo {
			continue
		}

		var entry calendar.Entry
		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			entry.ID = prop.Value
		}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			entry.Title = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			entry.Notes = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				entry.StartDate = &t
			}
		}
		if prop := comp.Props.Get(ical.PropDue); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				entry.DueDate = &t
			}
		}
		if prop := comp.Props.Get(ical.PropStatus); prop != nil {
			entry.Completed = strings.EqualFold(prop.Value, "COMPLETED")
		}
		if comp.Props.Get(ical.PropCompleted) != nil {
			entry.Completed = true
		}
		return entry, true
	}
	return calendar.Entry{}, false
}
