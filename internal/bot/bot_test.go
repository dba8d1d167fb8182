package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/memorymate/internal/calendar"
	"github.com/pathakanu/memorymate/internal/database"
	myopenai "github.com/pathakanu/memorymate/internal/openai"
	"github.com/pathakanu/memorymate/internal/reminder"
	"github.com/pathakanu/memorymate/internal/session"
	"github.com/pathakanu/memorymate/internal/store"
)

// fakeAssistant replays a fixed extraction result.
type fakeAssistant struct {
	configured bool
	intent     myopenai.Intent
	extraction myopenai.Extraction
	err        error
	extracted  int
}

func (f *fakeAssistant) Configured() bool { return f.configured }

func (f *fakeAssistant) ClassifyIntent(context.Context, string) (myopenai.Intent, error) {
	if f.intent == "" {
		return myopenai.IntentAddReminder, nil
	}
	return f.intent, nil
}

func (f *fakeAssistant) ExtractReminder(context.Context, string, string) (myopenai.Extraction, error) {
	f.extracted++
	return f.extraction, f.err
}

type testBot struct {
	bot       *Bot
	sessions  *session.Store
	backend   *calendar.MemoryBackend
	assistant *fakeAssistant
	coord     *reminder.Coordinator
}

func newTestBot(t *testing.T, platform calendar.Platform, allowedFrom string) *testBot {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.NewMemory(fmt.Sprintf("%s_%d", name, time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	sessions := session.NewStore()
	backend := calendar.NewMemoryBackend()
	gateway := calendar.NewGateway(backend, platform, "Memory Mate", "#6750A4", logger)
	coord := reminder.NewCoordinator(sessions, store.NewReminderStore(db, logger), gateway, 7, logger)
	assistant := &fakeAssistant{configured: true}

	return &testBot{
		bot:       New(sessions, coord, gateway, assistant, time.UTC, allowedFrom, logger),
		sessions:  sessions,
		backend:   backend,
		assistant: assistant,
		coord:     coord,
	}
}

func (tb *testBot) signIn() {
	tb.sessions.Set(session.EventSignedIn, &session.Session{UserID: "user"})
}

func TestHandleMessageRequiresSession(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformIOS, "")

	if got := tb.bot.HandleMessage(context.Background(), "remind me to pay rent"); got != replySignIn {
		t.Fatalf("unexpected reply %q", got)
	}
	if tb.assistant.extracted != 0 {
		t.Fatalf("extraction must not run without a session")
	}
}

func TestDraftCreatesNativeReminderOnIOS(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformIOS, "")
	tb.signIn()
	tb.assistant.extraction = myopenai.ReminderDraft{Title: "Call mom", Notes: "birthday", DueDate: "2030-01-01T17:00:00"}

	reply := tb.bot.HandleMessage(context.Background(), "remind me to call mom tomorrow at 5pm")
	if !strings.Contains(reply, "Call mom") || !strings.Contains(reply, "January 1, 2030") {
		t.Fatalf("unexpected reply %q", reply)
	}

	entries := tb.backend.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected one native entry, got %d", len(entries))
	}
	if entries[0].Title != "Call mom" || entries[0].Notes != "birthday" || entries[0].DueDate == nil {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if len(tb.backend.AllCalendars()) != 1 {
		t.Fatalf("expected the reminder calendar to be created once")
	}
}

func TestDraftFallsBackToStoreWithoutNativeReminders(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformAndroid, "")
	tb.signIn()
	tb.assistant.extraction = myopenai.ReminderDraft{Title: "Pay rent", DueDate: "not a date"}

	reply := tb.bot.HandleMessage(context.Background(), "remind me to pay rent")
	if !strings.HasPrefix(reply, "Got it!") {
		t.Fatalf("unexpected reply %q", reply)
	}

	reminders, err := tb.coord.ListReminders(context.Background())
	if err != nil {
		t.Fatalf("ListReminders returned error: %v", err)
	}
	if len(reminders) != 1 || reminders[0].Title != "Pay rent" || reminders[0].DueDate != nil {
		t.Fatalf("unexpected stored reminders %+v", reminders)
	}
	if len(tb.backend.AllEntries()) != 0 {
		t.Fatalf("android must not write native entries")
	}
}

func TestRejectedAndFailedExtraction(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformIOS, "")
	tb.signIn()

	tb.assistant.extraction = myopenai.Rejected{Marker: myopenai.RejectedMarker}
	if got := tb.bot.HandleMessage(context.Background(), "what's the weather"); got != replyRejected {
		t.Fatalf("unexpected reply %q", got)
	}

	tb.assistant.extraction = nil
	tb.assistant.err = fmt.Errorf("%w: timeout", myopenai.ErrExtraction)
	if got := tb.bot.HandleMessage(context.Background(), "remind me"); got != "" {
		t.Fatalf("extraction errors should be silent, got %q", got)
	}
	if len(tb.backend.AllEntries()) != 0 {
		t.Fatalf("no entry expected")
	}
}

func TestEventDraftIsNotSaved(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformIOS, "")
	tb.signIn()
	tb.assistant.extraction = myopenai.EventDraft{}

	if got := tb.bot.HandleMessage(context.Background(), "lunch with Sam on Friday at noon"); got != replyEventOnly {
		t.Fatalf("unexpected reply %q", got)
	}
	if tb.assistant.extracted != 1 {
		t.Fatalf("expected one extraction, got %d", tb.assistant.extracted)
	}
	if len(tb.backend.AllEntries()) != 0 || len(tb.backend.AllCalendars()) != 0 {
		t.Fatalf("events must not touch the device calendar")
	}
	reminders, err := tb.coord.ListReminders(context.Background())
	if err != nil {
		t.Fatalf("ListReminders returned error: %v", err)
	}
	if len(reminders) != 0 {
		t.Fatalf("events must not be stored as reminders, got %+v", reminders)
	}
}

func TestListAndHelpIntents(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformWeb, "")
	tb.signIn()

	if got := tb.bot.HandleMessage(context.Background(), "List reminders"); got != replyNoList {
		t.Fatalf("unexpected empty list reply %q", got)
	}

	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := tb.coord.CreateReminder(context.Background(), reminder.Input{Title: "Pay rent", DueDate: &due}); err != nil {
		t.Fatalf("CreateReminder returned error: %v", err)
	}
	got := tb.bot.HandleMessage(context.Background(), "show my reminders")
	if !strings.Contains(got, "1. Pay rent (Due: Tuesday, January 1, 2030)") {
		t.Fatalf("unexpected list reply %q", got)
	}

	if got := tb.bot.HandleMessage(context.Background(), "help"); got != helpResponse() {
		t.Fatalf("unexpected help reply %q", got)
	}
	if tb.assistant.extracted != 0 {
		t.Fatalf("rule based intents must not call extraction")
	}
}

func TestWebhookRepliesWithTwiML(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformWeb, "+15551234567")
	tb.signIn()

	post := func(from, body string) string {
		form := url.Values{"From": {from}, "Body": {body}}
		req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		tb.bot.Handler().ServeHTTP(rec, req)
		if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
			t.Fatalf("unexpected content type %q", ct)
		}
		return rec.Body.String()
	}

	if got := post("whatsapp:+15551234567", "help"); !strings.Contains(got, "<Response><Message>You can say things like:") {
		t.Fatalf("unexpected TwiML %q", got)
	}
	if got := post("whatsapp:+19990000000", "help"); strings.Contains(got, "<Message>") {
		t.Fatalf("unknown sender should get an empty response, got %q", got)
	}
	if got := post("whatsapp:+15551234567", ""); !strings.Contains(got, "I need a message") {
		t.Fatalf("unexpected TwiML for empty body %q", got)
	}
}

func TestUnconfiguredAssistantIsSilent(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, calendar.PlatformIOS, "")
	tb.signIn()
	tb.assistant.configured = false
	tb.assistant.err = myopenai.ErrClientNotInitialised

	if got := tb.bot.HandleMessage(context.Background(), "remind me to stretch"); got != "" {
		t.Fatalf("expected silent reply, got %q", got)
	}
	if tb.assistant.extracted != 1 {
		t.Fatalf("expected one extraction attempt, got %d", tb.assistant.extracted)
	}
}
