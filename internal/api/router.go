// Package api exposes the reminder service over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pathakanu/memorymate/internal/auth"
	"github.com/pathakanu/memorymate/internal/model"
	"github.com/pathakanu/memorymate/internal/reminder"
	"github.com/pathakanu/memorymate/internal/session"
)

// Reminders is the reminder coordinator as seen by the HTTP layer.
type Reminders interface {
	Refresh(ctx context.Context) (reminder.RefreshResult, error)
	View() *reminder.ViewModel
	CreateReminder(ctx context.Context, in reminder.Input) (*reminder.CreateResult, error)
	UpdateReminder(ctx context.Context, id string, in reminder.Input) (*reminder.UpdateResult, error)
	DeleteReminder(ctx context.Context, id string) error
	UpcomingReminders(ctx context.Context, after time.Time) ([]model.Reminder, error)
}

// Journal is the journal entry store.
type Journal interface {
	List(ctx context.Context, userID string) ([]model.JournalEntry, error)
	Create(ctx context.Context, entry model.JournalEntry, userID string) (*model.JournalEntry, error)
	Update(ctx context.Context, entry model.JournalEntry, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

// Profiles is the profile store.
type Profiles interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID, username, fullName string) error
}

// Chat answers chat messages and Twilio webhooks.
type Chat interface {
	HandleMessage(ctx context.Context, text string) string
	Handler() http.HandlerFunc
}

// Deps bundles the components served by the router.
type Deps struct {
	Auth      *auth.Service
	Sessions  session.Reader
	Reminders Reminders
	Journal   Journal
	Profiles  Profiles
	Chat      Chat
	Logger    *log.Logger
}

type server struct {
	Deps
}

// NewRouter returns the HTTP routes of the service.
func NewRouter(deps Deps) *mux.Router {
	s := &server{Deps: deps}
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/auth/sign-up", s.signUp).Methods("POST")
	r.HandleFunc("/auth/sign-in", s.signIn).Methods("POST")
	r.Handle("/twilio/webhook", s.Chat.Handler()).Methods("POST")

	private := r.NewRoute().Subrouter()
	private.Use(s.requireSession)
	private.HandleFunc("/auth/sign-out", s.signOut).Methods("POST")
	private.HandleFunc("/auth/session", s.getSession).Methods("GET")
	private.HandleFunc("/reminders", s.listReminders).Methods("GET")
	private.HandleFunc("/reminders", s.createReminder).Methods("POST")
	private.HandleFunc("/reminders/refresh", s.refreshReminders).Methods("POST")
	private.HandleFunc("/reminders/upcoming", s.upcomingReminders).Methods("GET")
	private.HandleFunc("/reminders/{id}", s.updateReminder).Methods("PUT")
	private.HandleFunc("/reminders/{id}", s.deleteReminder).Methods("DELETE")
	private.HandleFunc("/journal", s.listJournal).Methods("GET")
	private.HandleFunc("/journal", s.createJournal).Methods("POST")
	private.HandleFunc("/journal/{id}", s.updateJournal).Methods("PUT")
	private.HandleFunc("/journal/{id}", s.deleteJournal).Methods("DELETE")
	private.HandleFunc("/profile", s.getProfile).Methods("GET")
	private.HandleFunc("/profile", s.updateProfile).Methods("PUT")
	private.HandleFunc("/chat/messages", s.chatMessage).Methods("POST")

	return r
}

type sessionKey struct{}

// requireSession rejects requests without a signed-in user or without a
// bearer token issued to that user.
func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := s.Sessions.Current()
		if current == nil {
			writeError(w, http.StatusUnauthorized, noSessionMessage)
			return
		}

		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.Auth.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil || claims.UserID != current.UserID {
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, current)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	current, _ := ctx.Value(sessionKey{}).(*session.Session)
	return current
}
