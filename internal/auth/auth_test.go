package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/memorymate/internal/database"
	"github.com/pathakanu/memorymate/internal/session"
	"github.com/pathakanu/memorymate/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) (*Service, *store.ProfileStore, *session.Store) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.NewMemory(fmt.Sprintf("%s_%d", name, time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	profiles := store.NewProfileStore(db, logger)
	sessions := session.NewStore()
	return New(db, profiles, sessions, testSecret, time.Hour, logger), profiles, sessions
}

func TestSignUpCreatesProfileAndSession(t *testing.T) {
	t.Parallel()
	svc, profiles, sessions := newTestService(t)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, " Someone@Example.com ", "password123", "your_cool_name")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if sess.Email != "someone@example.com" || sess.AccessToken == "" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if current := sessions.Current(); current == nil || current.UserID != sess.UserID {
		t.Fatalf("session store not updated: %+v", current)
	}

	profile, err := profiles.Get(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("profile lookup: %v", err)
	}
	if profile.Username != "your_cool_name" {
		t.Fatalf("unexpected username %q", profile.Username)
	}

	if _, err := svc.SignUp(ctx, "someone@example.com", "other", "dup"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInAndSignOut(t *testing.T) {
	t.Parallel()
	svc, _, sessions := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "a@example.com", "secret", "a"); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	svc.SignOut()
	if sessions.Current() != nil {
		t.Fatalf("expected session cleared after sign-out")
	}

	if _, err := svc.SignInWithPassword(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignInWithPassword(ctx, "missing@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	sess, err := svc.SignInWithPassword(ctx, "A@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	if svc.GetSession() == nil {
		t.Fatalf("expected active session")
	}

	claims, err := svc.ParseToken(sess.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken returned error: %v", err)
	}
	if claims.UserID != sess.UserID {
		t.Fatalf("claims user %q, session user %q", claims.UserID, sess.UserID)
	}
}

func TestParseTokenRejectsTampered(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	sess, err := svc.SignUp(context.Background(), "b@example.com", "secret", "b")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, err := svc.ParseToken(sess.AccessToken + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.ParseToken(sess.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
