package reminder

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/pathakanu/memorymate/internal/calendar"
	"github.com/pathakanu/memorymate/internal/model"
	"github.com/pathakanu/memorymate/internal/session"
	"github.com/pathakanu/memorymate/internal/store"
)

var fixedNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// fakeStore records every call and serves reminders from memory.
type fakeStore struct {
	mu        sync.Mutex
	calls     int
	reminders map[string][]model.Reminder
	listErr   error
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{reminders: make(map[string][]model.Reminder)}
}

func (f *fakeStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) List(_ context.Context, userID string) ([]model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return []model.Reminder{}, f.listErr
	}
	return append([]model.Reminder{}, f.reminders[userID]...), nil
}

func (f *fakeStore) Upcoming(_ context.Context, userID string, after time.Time) ([]model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := []model.Reminder{}
	for _, r := range f.reminders[userID] {
		if r.DueDate != nil && !r.DueDate.Before(after) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, r model.Reminder, userID string) (*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.nextID++
	r.ID = string(rune('a' + f.nextID - 1))
	r.UserID = userID
	f.reminders[userID] = append(f.reminders[userID], r)
	return &r, nil
}

func (f *fakeStore) Update(_ context.Context, r model.Reminder, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i, existing := range f.reminders[userID] {
		if existing.ID == r.ID {
			r.UserID = userID
			f.reminders[userID][i] = r
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i, existing := range f.reminders[userID] {
		if existing.ID == id {
			f.reminders[userID] = append(f.reminders[userID][:i], f.reminders[userID][i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type fixture struct {
	sessions *session.Store
	store    *fakeStore
	backend  *calendar.MemoryBackend
	gateway  *calendar.Gateway
	coord    *Coordinator
}

func newFixture(t *testing.T, platform calendar.Platform) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	f := &fixture{
		sessions: session.NewStore(),
		store:    newFakeStore(),
		backend:  calendar.NewMemoryBackend(),
	}
	f.gateway = calendar.NewGateway(f.backend, platform, "Memory Mate", "#6750A4", logger)
	f.coord = NewCoordinator(f.sessions, f.store, f.gateway, 7, logger, WithClock(func() time.Time { return fixedNow }))
	return f
}

func (f *fixture) signIn(userID string) {
	f.sessions.Set(session.EventSignedIn, &session.Session{UserID: userID})
}

func TestRefreshWithoutSessionIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	f.coord.View().Replace([]model.Reminder{{ID: "keep", Title: "Existing"}})

	result, err := f.coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped refresh")
	}
	if f.store.Calls() != 0 {
		t.Fatalf("expected no store calls, got %d", f.store.Calls())
	}
	if len(f.backend.AllCalendars()) != 0 || f.backend.CreateCalls() != 0 {
		t.Fatalf("expected no calendar calls")
	}
	if got := f.coord.View().Reminders(); len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("view model changed: %+v", got)
	}
	if !f.coord.View().LastRefreshed().IsZero() {
		t.Fatalf("skipped refresh should not be recorded")
	}
}

func TestRefreshReplacesViewModel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformAndroid)
	f.signIn("U")
	f.store.reminders["U"] = []model.Reminder{{ID: "1", Title: "Pay rent"}, {ID: "2", Title: "Call mom"}}
	f.coord.View().Replace([]model.Reminder{{ID: "stale", Title: "Stale"}})

	result, err := f.coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	got := f.coord.View().Reminders()
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("expected full replace, got %+v", got)
	}
	if result.Strategy != "full-replace" || result.Reminders != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !f.coord.View().LastRefreshed().Equal(fixedNow) {
		t.Fatalf("refresh time not recorded")
	}
	if len(f.backend.AllCalendars()) != 0 {
		t.Fatalf("platform without native reminders must not touch the calendar")
	}
}

func TestRefreshPullsNativeEntriesOnIOS(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	f.signIn("U")

	if _, err := f.coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	id, ok := f.gateway.CalendarID(calendar.EntityReminder)
	if !ok {
		t.Fatalf("expected reminder calendar to be ensured")
	}

	inside := fixedNow.Add(3 * 24 * time.Hour)
	outside := fixedNow.Add(30 * 24 * time.Hour)
	for _, due := range []time.Time{inside, outside} {
		due := due
		if _, err := f.backend.CreateEntry(context.Background(), id, calendar.Entry{Title: "native", DueDate: &due}); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	result, err := f.coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if result.NativeEntries != 1 {
		t.Fatalf("expected one entry inside the window, got %d", result.NativeEntries)
	}
	if result.Reminders != 0 {
		t.Fatalf("native entries must not be merged into the view, got %d", result.Reminders)
	}
	if n := len(f.backend.AllCalendars()); n != 1 {
		t.Fatalf("expected one calendar after repeated refreshes, got %d", n)
	}
}

func TestRefreshCalendarFailureDoesNotBlockStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	f.backend.Permission = calendar.PermissionDenied
	f.signIn("U")
	f.store.reminders["U"] = []model.Reminder{{ID: "1", Title: "Pay rent"}}

	if _, err := f.coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if got := f.coord.View().Reminders(); len(got) != 1 {
		t.Fatalf("expected store list despite calendar failure, got %+v", got)
	}
	if f.coord.View().LastRefreshed().IsZero() {
		t.Fatalf("refresh completion must be recorded")
	}
}

func TestRefreshStoreFailureEmptiesView(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformWeb)
	f.signIn("U")
	f.store.listErr = store.ErrRemote
	f.coord.View().Replace([]model.Reminder{{ID: "old"}})

	if _, err := f.coord.Refresh(context.Background()); !errors.Is(err, store.ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if got := f.coord.View().Reminders(); len(got) != 0 {
		t.Fatalf("expected empty view after failed read, got %+v", got)
	}
	if f.coord.View().LastRefreshed().IsZero() {
		t.Fatalf("refresh completion must be recorded")
	}
}

func TestCommandsRequireSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	ctx := context.Background()

	if _, err := f.coord.CreateReminder(ctx, Input{Title: "Pay rent"}); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("create: expected ErrNoSession, got %v", err)
	}
	if _, err := f.coord.UpdateReminder(ctx, "1", Input{Title: "Pay rent"}); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("update: expected ErrNoSession, got %v", err)
	}
	if err := f.coord.DeleteReminder(ctx, "1"); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("delete: expected ErrNoSession, got %v", err)
	}
	if got, err := f.coord.UpcomingReminders(ctx, fixedNow); !errors.Is(err, session.ErrNoSession) || got == nil {
		t.Fatalf("upcoming: expected empty list and ErrNoSession, got %v %v", got, err)
	}
	if f.store.Calls() != 0 {
		t.Fatalf("no store calls expected without a session")
	}
}

func TestCreateReminderMirrorsOnIOS(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	f.signIn("U1")
	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	result, err := f.coord.CreateReminder(context.Background(), Input{Title: " Pay rent ", Description: "landlord", DueDate: &due})
	if err != nil {
		t.Fatalf("CreateReminder returned error: %v", err)
	}
	if result.Reminder == nil || result.Reminder.ID == "" || result.Reminder.Title != "Pay rent" {
		t.Fatalf("unexpected reminder %+v", result.Reminder)
	}
	if result.MirrorID == "" {
		t.Fatalf("expected a native mirror on iOS")
	}

	entries := f.backend.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected one native entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Title != "Pay rent" || entry.Notes != "landlord" {
		t.Fatalf("unexpected native entry %+v", entry)
	}
	if entry.StartDate == nil || !entry.StartDate.Equal(fixedNow) || entry.DueDate == nil || !entry.DueDate.Equal(due) {
		t.Fatalf("unexpected native dates %+v", entry)
	}
	if len(f.coord.View().Reminders()) != 0 {
		t.Fatalf("commands must not touch the view model")
	}
}

func TestCreateReminderWithoutNativeReminders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformAndroid)
	f.signIn("U1")

	result, err := f.coord.CreateReminder(context.Background(), Input{Title: "Pay rent"})
	if err != nil {
		t.Fatalf("CreateReminder returned error: %v", err)
	}
	if result.MirrorID != "" || len(f.backend.AllEntries()) != 0 {
		t.Fatalf("android must not mirror reminders")
	}
}

func TestCreateReminderRequiresTitle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	f.signIn("U1")

	if _, err := f.coord.CreateReminder(context.Background(), Input{Title: "   "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if f.store.Calls() != 0 {
		t.Fatalf("store must not be called for an invalid reminder")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t, calendar.PlatformIOS)
	f.signIn("U1")
	ctx := context.Background()

	created, err := f.coord.CreateReminder(ctx, Input{Title: "Pay rent"})
	if err != nil {
		t.Fatalf("CreateReminder returned error: %v", err)
	}

	updated, err := f.coord.UpdateReminder(ctx, created.Reminder.ID, Input{Title: "Pay rent today"})
	if err != nil {
		t.Fatalf("UpdateReminder returned error: %v", err)
	}
	if !updated.NativeStale {
		t.Fatalf("iOS updates should flag the native mirror as stale")
	}
	if entries := f.backend.AllEntries(); entries[0].Title != "Pay rent" {
		t.Fatalf("native entry must not change on update, got %q", entries[0].Title)
	}

	if err := f.coord.DeleteReminder(ctx, created.Reminder.ID); err != nil {
		t.Fatalf("DeleteReminder returned error: %v", err)
	}
	if err := f.coord.DeleteReminder(ctx, created.Reminder.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFormatDueDate(t *testing.T) {
	if got := FormatDueDate(nil, time.UTC); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	due := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	if got := FormatDueDate(&due, time.UTC); got != "Due: Tuesday, January 1, 2030" {
		t.Fatalf("unexpected format %q", got)
	}
}
