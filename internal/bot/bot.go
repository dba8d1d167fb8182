package bot

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pathakanu/memorymate/internal/calendar"
	"github.com/pathakanu/memorymate/internal/model"
	myopenai "github.com/pathakanu/memorymate/internal/openai"
	"github.com/pathakanu/memorymate/internal/reminder"
	"github.com/pathakanu/memorymate/internal/session"
)

const (
	replySignIn    = "Please sign in to Memory Mate first."
	replyRejected  = "I couldn't find a reminder in that message. Try something like \"remind me to call mom tomorrow at 5pm\"."
	replyEventOnly = "I can only save reminders for now."
	replyNoList    = "You have no reminders yet. Send me one to get started!"
	replyListError = "Hmm, I couldn't load your reminders. Please try again later."
	replySaveError = "I couldn't save the reminder. Please try again."
)

// Assistant is the completion client used for classification and extraction.
type Assistant interface {
	Configured() bool
	ClassifyIntent(ctx context.Context, content string) (myopenai.Intent, error)
	ExtractReminder(ctx context.Context, message, extraPrompt string) (myopenai.Extraction, error)
}

// Reminders is the slice of the reminder coordinator the chat surface needs.
type Reminders interface {
	ListReminders(ctx context.Context) ([]model.Reminder, error)
	CreateReminder(ctx context.Context, in reminder.Input) (*reminder.CreateResult, error)
}

// Calendar resolves the reminder list and writes native entries.
type Calendar interface {
	Platform() calendar.Platform
	CalendarID(entityType calendar.EntityType) (string, bool)
	EnsureCreated(ctx context.Context, entityType calendar.EntityType) (string, error)
	CreateEntry(ctx context.Context, calendarID string, entry calendar.Entry) (string, error)
}

// Bot turns chat messages into reminders.
type Bot struct {
	sessions    session.Reader
	reminders   Reminders
	calendar    Calendar
	assistant   Assistant
	location    *time.Location
	allowedFrom string
	logger      *log.Logger
}

// New creates a Bot. allowedFrom restricts the WhatsApp webhook to one
// sender number when not empty.
func New(sessions session.Reader, reminders Reminders, cal Calendar, assistant Assistant, location *time.Location, allowedFrom string, logger *log.Logger) *Bot {
	if location == nil {
		location = time.Local
	}
	return &Bot{
		sessions:    sessions,
		reminders:   reminders,
		calendar:    cal,
		assistant:   assistant,
		location:    location,
		allowedFrom: sanitizeWhatsAppNumber(allowedFrom),
		logger:      logger,
	}
}

// HandleMessage answers one chat message. An empty reply means the message
// produced no follow-up action.
func (b *Bot) HandleMessage(ctx context.Context, text string) string {
	body := strings.TrimSpace(text)
	if body == "" {
		return "I need a message to work with. Please try again."
	}
	if current := b.sessions.Current(); current == nil {
		return replySignIn
	}

	switch b.determineIntent(ctx, body) {
	case myopenai.IntentListReminders:
		return b.listReminders(ctx)
	case myopenai.IntentHelp:
		return helpResponse()
	default:
		return b.captureReminder(ctx, body)
	}
}

func (b *Bot) determineIntent(ctx context.Context, message string) myopenai.Intent {
	lower := strings.ToLower(message)
	if isListRequest(lower) {
		return myopenai.IntentListReminders
	}
	if isHelpRequest(lower) {
		return myopenai.IntentHelp
	}
	if !b.assistant.Configured() {
		return myopenai.IntentAddReminder
	}

	intent, err := b.assistant.ClassifyIntent(ctx, message)
	if err != nil {
		b.logger.Printf("bot: intent classification error: %v", err)
		return myopenai.IntentAddReminder
	}
	return intent
}

func (b *Bot) captureReminder(ctx context.Context, message string) string {
	extraction, err := b.assistant.ExtractReminder(ctx, message, "")
	if err != nil {
		if !errors.Is(err, myopenai.ErrClientNotInitialised) {
			b.logger.Printf("bot: extraction error: %v", err)
		}
		return ""
	}

	return myopenai.Match(extraction,
		func(myopenai.Rejected) string { return replyRejected },
		func(draft myopenai.ReminderDraft) string { return b.saveDraft(ctx, draft) },
		func(myopenai.EventDraft) string { return replyEventOnly },
	)
}

// saveDraft writes the draft into the device reminder list. Platforms without
// native reminders keep it in the row store instead.
func (b *Bot) saveDraft(ctx context.Context, draft myopenai.ReminderDraft) string {
	due := draft.DueTime(b.location)

	if !b.calendar.Platform().SupportsReminders() {
		created, err := b.reminders.CreateReminder(ctx, reminder.Input{
			Title:       draft.Title,
			Description: draft.Notes,
			DueDate:     due,
		})
		if err != nil {
			b.logger.Printf("bot: save draft: %v", err)
			return replySaveError
		}
		return confirmation(created.Reminder.Title, due, b.location)
	}

	calendarID, ok := b.calendar.CalendarID(calendar.EntityReminder)
	if !ok {
		var err error
		calendarID, err = b.calendar.EnsureCreated(ctx, calendar.EntityReminder)
		if err != nil {
			b.logger.Printf("bot: resolve reminder calendar: %v", err)
			return replySaveError
		}
	}

	id, err := b.calendar.CreateEntry(ctx, calendarID, calendar.Entry{
		Title:     draft.Title,
		Notes:     draft.Notes,
		StartDate: draft.StartTime(b.location),
		DueDate:   due,
	})
	if err != nil {
		b.logger.Printf("bot: create native reminder: %v", err)
		return replySaveError
	}
	b.logger.Printf("bot: created native reminder %s", id)
	return confirmation(draft.Title, due, b.location)
}

func (b *Bot) listReminders(ctx context.Context) string {
	reminders, err := b.reminders.ListReminders(ctx)
	if err != nil {
		b.logger.Printf("bot: list reminders: %v", err)
		return replyListError
	}
	if len(reminders) == 0 {
		return replyNoList
	}

	var sb strings.Builder
	sb.WriteString("Here are your reminders:\n")
	for i, r := range reminders {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, r.Title))
		if due := reminder.FormatDueDate(r.DueDate, b.location); due != "" {
			sb.WriteString(" (" + due + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Handler returns the HTTP handler for incoming Twilio messages.
func (b *Bot) Handler() http.HandlerFunc {
	return b.handleIncomingMessage
}

// handleIncomingMessage processes Twilio webhook POST requests.
func (b *Bot) handleIncomingMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		b.logger.Printf("webhook: parse error: %v", err)
		b.writeTwilioResponse(w, "Sorry, I couldn't understand that request.")
		return
	}

	from := sanitizeWhatsAppNumber(r.FormValue("From"))
	body := strings.TrimSpace(r.FormValue("Body"))
	if from == "" || body == "" {
		b.writeTwilioResponse(w, "I need a message to work with. Please try again.")
		return
	}
	if b.allowedFrom != "" && from != b.allowedFrom {
		b.logger.Printf("webhook: ignoring message from unknown sender %s", from)
		b.writeTwilioResponse(w, "")
		return
	}

	b.writeTwilioResponse(w, b.HandleMessage(r.Context(), body))
}

func (b *Bot) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message,omitempty"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		b.logger.Printf("twilio response encode: %v", err)
	}
}

func confirmation(title string, due *time.Time, loc *time.Location) string {
	if strings.TrimSpace(title) == "" {
		title = "your reminder"
	}
	msg := fmt.Sprintf("Got it! I'll remind you: %s.", title)
	if formatted := reminder.FormatDueDate(due, loc); formatted != "" {
		msg += " " + formatted
	}
	return msg
}

func isListRequest(body string) bool {
	return strings.Contains(body, "show my reminders") ||
		strings.Contains(body, "list my reminders") ||
		strings.Contains(body, "show reminders") ||
		strings.Contains(body, "list reminders") ||
		(strings.Contains(body, "list") && strings.Contains(body, "reminder"))
}

func isHelpRequest(body string) bool {
	return body == "help" || body == "?" || strings.HasPrefix(body, "what can you do")
}

func sanitizeWhatsAppNumber(from string) string {
	// Twilio prepends whatsapp: to the number.
	return strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
}

func helpResponse() string {
	return "You can say things like:\n- \"Remind me to pay rent on Friday\" to add a reminder\n- \"List reminders\" to see everything saved\n- \"Help\" to see this message again"
}
