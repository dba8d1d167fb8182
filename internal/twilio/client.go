package twilio

import (
	"errors"
	"fmt"
	"log"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned when credentials or the sender number are missing.
var ErrNotConfigured = errors.New("twilio client not configured")

// Client sends WhatsApp messages for reminder digests.
type Client struct {
	client       *twilio.RestClient
	fromWhatsApp string
	logger       *log.Logger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
// Without an account SID the client stays disabled.
func New(accountSID, authToken, fromWhatsApp string, logger *log.Logger) *Client {
	c := &Client{
		fromWhatsApp: fromWhatsApp,
		logger:       logger,
	}
	if accountSID != "" && authToken != "" {
		c.client = twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	}
	return c
}

// Enabled reports whether messages can be sent.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil && normalizeWhatsAppAddress(c.fromWhatsApp) != ""
}

// SendWhatsAppMessage sends body to the given number and returns the message SID.
func (c *Client) SendWhatsAppMessage(to, body string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return "", fmt.Errorf("recipient number missing or invalid")
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("message body cannot be empty")
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	c.logger.Printf("twilio: sending WhatsApp message to %s via %s (%d chars)", recipient, sender, len(body))

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send message error: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	c.logger.Printf("twilio: message sent, SID: %s", sid)
	return sid, nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
