// Package session keeps the single signed-in session of the process and
// notifies listeners when it changes.
package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned by operations that require a signed-in user.
var ErrNoSession = errors.New("no user on the session")

// Event describes why the session changed.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Session is the credential bundle of the signed-in user.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Listener is invoked after every session change. session is nil on sign-out.
type Listener func(event Event, session *Session)

// Reader gives read-only access to the current session.
type Reader interface {
	Current() *Session
}

// Store is the process-wide session holder.
type Store struct {
	mu        sync.RWMutex
	current   *Session
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
}

// NewStore returns an empty store with no signed-in user.
func NewStore() *Store {
	return &Store{
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Init seeds the store with a restored session, if any, and notifies
// listeners with EventInitialSession.
func (s *Store) Init(restored *Session) {
	s.Set(EventInitialSession, restored)
}

// Current returns a copy of the active session or nil. Expired sessions are
// reported as absent.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Expired(s.now()) {
		return nil
	}
	copied := *s.current
	return &copied
}

// Set replaces the active session and notifies listeners outside the lock.
func (s *Store) Set(event Event, session *Session) {
	s.mu.Lock()
	if session != nil {
		copied := *session
		s.current = &copied
	} else {
		s.current = nil
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		var snapshot *Session
		if session != nil {
			copied := *session
			snapshot = &copied
		}
		l(event, snapshot)
	}
}

// Clear tears the session down on sign-out.
func (s *Store) Clear() {
	s.Set(EventSignedOut, nil)
}

// Subscribe registers listener and returns a function that removes it.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
