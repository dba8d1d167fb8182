package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// ErrExtraction is returned when the completion call or its response fails.
var ErrExtraction = errors.New("reminder extraction failed")

// RejectedMarker is the string the model answers with when no reminder can be extracted.
const RejectedMarker = "REJECTED"

const reminderPrompt = "The following is a conversation between a user and an agent. The agent will attempt to extract a reminder from the user's message. If a reminder cannot be extracted, or the user changes the subject, the agent will reject the response by setting the reminder object as a string with the content REJECTED. The date right now is %s."

// Extraction is the decoded result of ExtractReminder. It is one of
// Rejected, ReminderDraft or EventDraft.
type Extraction interface {
	isExtraction()
}

// Rejected means the message did not describe a reminder.
type Rejected struct {
	Marker string
}

// ReminderDraft is an unvalidated reminder lifted from free text. Every
// field is optional and dates are whatever the model produced.
type ReminderDraft struct {
	Title     string `json:"title,omitempty" jsonschema:"description=Short reminder title"`
	StartDate string `json:"startDate,omitempty" jsonschema:"description=When the reminder starts"`
	Notes     string `json:"notes,omitempty" jsonschema:"description=Free-form notes"`
	DueDate   string `json:"dueDate,omitempty" jsonschema:"description=When the reminder is due"`
}

// EventDraft is the placeholder variant for calendar events. Nothing acts on it yet.
type EventDraft struct{}

func (Rejected) isExtraction() {}
func (ReminderDraft) isExtraction() {}
func (EventDraft) isExtraction() {}

// Match dispatches on the concrete variant of e. Pointers to a variant are
// dispatched as the value they point to. Match panics when e is nil, a nil
// pointer, or a type outside this package.
func Match[T any](e Extraction, rejected func(Rejected) T, reminder func(ReminderDraft) T, event func(EventDraft) T) T {
	switch v := e.(type) {
	case Rejected:
		return rejected(v)
	case ReminderDraft:
		return reminder(v)
	case EventDraft:
		return event(v)
	case *Rejected:
		if v != nil {
			return rejected(*v)
		}
	case *ReminderDraft:
		if v != nil {
			return reminder(*v)
		}
	case *EventDraft:
		if v != nil {
			return event(*v)
		}
	}
	panic(fmt.Sprintf("openai: unknown extraction variant %T", e))
}

var draftLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// StartTime parses StartDate, returning nil when it is empty or unparsable.
func (d ReminderDraft) StartTime(loc *time.Location) *time.Time {
	return parseDraftDate(d.StartDate, loc)
}

// DueTime parses DueDate, returning nil when it is empty or unparsable.
func (d ReminderDraft) DueTime(loc *time.Location) *time.Time {
	return parseDraftDate(d.DueDate, loc)
}

func parseDraftDate(value string, loc *time.Location) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range draftLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t
		}
	}
	return nil
}

// DecodeExtraction decodes a structured completion of the form
// {"reminder": ...}. Any string is treated as a rejection, an empty object
// as an event draft and any other object as a reminder draft.
func DecodeExtraction(data []byte) (Extraction, error) {
	var envelope struct {
		Reminder json.RawMessage `json:"reminder"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrExtraction, err)
	}

	raw := bytes.TrimSpace(envelope.Reminder)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: response has no reminder", ErrExtraction)
	}

	switch raw[0] {
	case '"':
		var marker string
		if err := json.Unmarshal(raw, &marker); err != nil {
			return nil, fmt.Errorf("%w: decode marker: %w", ErrExtraction, err)
		}
		return Rejected{Marker: marker}, nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: decode reminder: %w", ErrExtraction, err)
		}
		if len(fields) == 0 {
			return EventDraft{}, nil
		}
		var draft ReminderDraft
		if err := json.Unmarshal(raw, &draft); err != nil {
			return nil, fmt.Errorf("%w: decode reminder: %w", ErrExtraction, err)
		}
		return draft, nil
	default:
		return nil, fmt.Errorf("%w: unexpected reminder value %s", ErrExtraction, raw)
	}
}

// ExtractionSchema is the structured output schema sent with every extraction request.
func ExtractionSchema() map[string]any {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	draft := reflector.Reflect(&ReminderDraft{})
	draft.Version = ""
	draft.ID = ""
	draft.Description = "Reminder object"

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reminder": map[string]any{
				"anyOf": []any{
					map[string]any{
						"type":        "string",
						"description": "Response type can be: ***REJECTED or Reminder***",
					},
					draft,
					map[string]any{
						"type":        "object",
						"description": "Event object",
						"properties":  map[string]any{},
					},
				},
			},
		},
		"required": []string{"reminder"},
	}
}

// ExtractReminder asks the model to lift a reminder out of message.
// extraPrompt is appended to the system instruction when not empty.
func (c *Client) ExtractReminder(ctx context.Context, message, extraPrompt string) (Extraction, error) {
	if !c.Configured() {
		return nil, ErrClientNotInitialised
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", ErrExtraction)
	}

	system := fmt.Sprintf(reminderPrompt, c.now().Format("Mon Jan 02 2006"))
	if extraPrompt = strings.TrimSpace(extraPrompt); extraPrompt != "" {
		system += " " + extraPrompt
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(message),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "reminder",
					Schema: ExtractionSchema(),
					Strict: openai.Bool(false),
				},
			},
		},
		N:                   openai.Int(1),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion received", ErrExtraction)
	}

	return DecodeExtraction([]byte(resp.Choices[0].Message.Content))
}
