package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pathakanu/memorymate/internal/auth"
	"github.com/pathakanu/memorymate/internal/reminder"
	"github.com/pathakanu/memorymate/internal/session"
	"github.com/pathakanu/memorymate/internal/store"
)

const noSessionMessage = "No user on the session!"

type errorResponse struct {
	Error string `json:"error"`
	Alert bool   `json:"alert"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Alert: true})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeFailure logs err and answers with the user-facing alert for it.
func (s *server) writeFailure(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusUnauthorized, noSessionMessage)
	case errors.Is(err, reminder.ErrTitleRequired), errors.Is(err, store.ErrMissingID), errors.Is(err, auth.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrRemote):
		s.Logger.Printf("api: %s: %v", action, err)
		writeError(w, http.StatusBadGateway, "Failed to "+action)
	default:
		s.Logger.Printf("api: %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
