package openai

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
)

type keySource map[string]string

func (k keySource) Lookup(_ context.Context, key string) (string, error) {
	value, ok := k[key]
	if !ok {
		return "", errors.New("not found")
	}
	return value, nil
}

func TestLoadPrefersStoredKey(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	c := Load(context.Background(), keySource{APIKeyCredential: "stored"}, "", "", 0, logger)
	if !c.Configured() {
		t.Fatalf("expected client configured from stored credential")
	}

	c = Load(context.Background(), keySource{}, "fallback", "", 0, logger)
	if !c.Configured() {
		t.Fatalf("expected client configured from fallback key")
	}

	c = Load(context.Background(), keySource{}, "", "", 0, logger)
	if c.Configured() {
		t.Fatalf("expected unconfigured client without any key")
	}
}

func TestClassifyIntentValidatesInput(t *testing.T) {
	c := New("", "", 0)
	if _, err := c.ClassifyIntent(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty content")
	}
	if _, err := c.ClassifyIntent(context.Background(), "list"); !errors.Is(err, ErrClientNotInitialised) {
		t.Fatalf("expected ErrClientNotInitialised, got %v", err)
	}
}
