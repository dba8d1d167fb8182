package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// APIKeyCredential is the credentials row that holds the completion API key.
const APIKeyCredential = "OPENAI_API_KEY"

// Client wraps the OpenAI SDK and provides utility helpers.
type Client struct {
	client    *openai.Client
	model     openai.ChatModel
	maxTokens int64
	now       func() time.Time
}

// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
var ErrClientNotInitialised = errors.New("openai client not initialised")

// KeySource looks shared secrets up by key.
type KeySource interface {
	Lookup(ctx context.Context, key string) (string, error)
}

// Intent represents the high-level action inferred from a chat message.
type Intent string

const (
	// IntentUnknown indicates the message intent could not be resolved.
	IntentUnknown Intent = "unknown"
	// IntentAddReminder asks to capture a new reminder.
	IntentAddReminder Intent = "add_reminder"
	// IntentListReminders asks to list current reminders.
	IntentListReminders Intent = "list_reminders"
	// IntentHelp asks for usage guidance.
	IntentHelp Intent = "help"
)

// New returns a client for apiKey. Without a key the client is returned
// unconfigured and every call fails with ErrClientNotInitialised.
func New(apiKey, model string, maxTokens int, opts ...option.RequestOption) *Client {
	c := &Client{
		model:     openai.ChatModelGPT4oMini,
		maxTokens: int64(maxTokens),
		now:       time.Now,
	}
	if model != "" {
		c.model = openai.ChatModel(model)
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 200
	}
	if apiKey == "" {
		return c
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	c.client = &client
	return c
}

// Load builds the client from the key stored in the credentials table and
// falls back to fallbackKey when the row is missing.
func Load(ctx context.Context, keys KeySource, fallbackKey, model string, maxTokens int, logger *log.Logger) *Client {
	key, err := keys.Lookup(ctx, APIKeyCredential)
	if err != nil || key == "" {
		if err != nil {
			logger.Printf("openai: credential %s unavailable, using configured key: %v", APIKeyCredential, err)
		}
		key = fallbackKey
	}
	if key == "" {
		logger.Printf("openai: no API key configured, reminder extraction disabled")
	}
	return New(key, model, maxTokens)
}

// Configured reports whether the client can reach the API.
func (c *Client) Configured() bool {
	return c != nil && c.client != nil
}

// ClassifyIntent uses the language model to infer the user's intent.
func (c *Client) ClassifyIntent(ctx context.Context, content string) (Intent, error) {
	if strings.TrimSpace(content) == "" {
		return IntentUnknown, fmt.Errorf("content cannot be empty")
	}
	if !c.Configured() {
		return IntentUnknown, ErrClientNotInitialised
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("Classify the user's message for a reminders assistant. Reply with exactly one label: add_reminder, list_reminders, help, or unknown."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(content),
					},
				},
			},
		},
		Temperature:         openai.Float(0.0),
		MaxCompletionTokens: openai.Int(8),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return IntentUnknown, err
	}
	if len(resp.Choices) == 0 {
		return IntentUnknown, fmt.Errorf("no completion received")
	}

	label := strings.TrimSpace(resp.Choices[0].Message.Content)
	switch Intent(strings.ToLower(label)) {
	case IntentAddReminder:
		return IntentAddReminder, nil
	case IntentListReminders:
		return IntentListReminders, nil
	case IntentHelp:
		return IntentHelp, nil
	default:
		return IntentUnknown, nil
	}
}
