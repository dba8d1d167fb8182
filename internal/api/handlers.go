package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pathakanu/memorymate/internal/model"
	"github.com/pathakanu/memorymate/internal/reminder"
)

const manualUpdateMessage = "The reminder has been updated in Memory Mate. You may need to manually update it in your Reminders app."

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func (s *server) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	current, err := s.Auth.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		s.writeFailure(w, "sign up", err)
		return
	}
	writeJSON(w, http.StatusCreated, current)
}

func (s *server) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	current, err := s.Auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeFailure(w, "sign in", err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *server) signOut(w http.ResponseWriter, r *http.Request) {
	s.Auth.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

// getSession describes the signed-in user. The access token is never echoed.
func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	current := *sessionFrom(r.Context())
	current.AccessToken = ""
	writeJSON(w, http.StatusOK, map[string]any{"session": current})
}

type remindersResponse struct {
	Reminders     []model.Reminder `json:"reminders"`
	LastRefreshed *time.Time       `json:"last_refreshed,omitempty"`
}

func (s *server) remindersView() remindersResponse {
	view := s.Reminders.View()
	resp := remindersResponse{Reminders: view.Reminders()}
	if at := view.LastRefreshed(); !at.IsZero() {
		resp.LastRefreshed = &at
	}
	return resp
}

// listReminders refreshes like a screen gaining focus. A failed store read
// degrades to the emptied view.
func (s *server) listReminders(w http.ResponseWriter, r *http.Request) {
	_, _ = s.Reminders.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.remindersView())
}

func (s *server) refreshReminders(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Reminders.Refresh(r.Context()); err != nil {
		s.writeFailure(w, "refresh reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, s.remindersView())
}

func (s *server) upcomingReminders(w http.ResponseWriter, r *http.Request) {
	after := time.Now()
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be an RFC3339 timestamp")
			return
		}
		after = parsed
	}

	reminders, err := s.Reminders.UpcomingReminders(r.Context(), after)
	if err != nil {
		s.writeFailure(w, "load upcoming reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func (s *server) createReminder(w http.ResponseWriter, r *http.Request) {
	var in reminder.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.Reminders.CreateReminder(r.Context(), in)
	if err != nil {
		s.writeFailure(w, "create reminder", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *server) updateReminder(w http.ResponseWriter, r *http.Request) {
	var in reminder.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.Reminders.UpdateReminder(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.writeFailure(w, "update reminder", err)
		return
	}

	resp := map[string]any{"native_stale": result.NativeStale}
	if result.NativeStale {
		resp["message"] = manualUpdateMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) deleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.Reminders.DeleteReminder(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeFailure(w, "delete reminder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type journalRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *server) listJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Journal.List(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		s.writeFailure(w, "load journal entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *server) createJournal(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "journal entry cannot be empty")
		return
	}

	entry, err := s.Journal.Create(r.Context(), model.JournalEntry{Title: req.Title, Content: req.Content}, sessionFrom(r.Context()).UserID)
	if err != nil {
		s.writeFailure(w, "create journal entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *server) updateJournal(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry := model.JournalEntry{ID: mux.Vars(r)["id"], Title: req.Title, Content: req.Content}
	if err := s.Journal.Update(r.Context(), entry, sessionFrom(r.Context()).UserID); err != nil {
		s.writeFailure(w, "update journal entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteJournal(w http.ResponseWriter, r *http.Request) {
	if err := s.Journal.Delete(r.Context(), mux.Vars(r)["id"], sessionFrom(r.Context()).UserID); err != nil {
		s.writeFailure(w, "delete journal entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type profileRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (s *server) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.Profiles.Get(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		s.writeFailure(w, "load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := sessionFrom(r.Context()).UserID
	if err := s.Profiles.Update(r.Context(), userID, strings.TrimSpace(req.Username), strings.TrimSpace(req.FullName)); err != nil {
		s.writeFailure(w, "update profile", err)
		return
	}
	s.getProfile(w, r)
}

type chatRequest struct {
	Text string `json:"text"`
}

func (s *server) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": s.Chat.HandleMessage(r.Context(), req.Text)})
}
