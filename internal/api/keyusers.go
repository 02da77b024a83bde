package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keylock-project/keylock-core/internal/key"
)

// keyUserRequest is the create/update body for key users.
type keyUserRequest struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// activeRequest toggles an active flag.
type activeRequest struct {
	Active bool `json:"active"`
}

// handleListKeyUsers returns all key users.
func (s *Server) handleListKeyUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.keys.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list key users", "error", err)
		writeInternalError(w, "failed to list key users")
		return
	}
	if users == nil {
		users = []key.KeyUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

// handleCreateKeyUser creates a new key user. New users start active.
func (s *Server) handleCreateKeyUser(w http.ResponseWriter, r *http.Request) {
	var req keyUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	u := &key.KeyUser{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Email:    req.Email,
		IsActive: true,
	}
	if err := s.keys.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, key.ErrNameRequired) {
			writeBadRequest(w, "name is required")
			return
		}
		s.logger.Error("failed to create key user", "error", err)
		writeInternalError(w, "failed to create key user")
		return
	}

	created, err := s.keys.GetUser(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("failed to load created key user", "error", err)
		writeInternalError(w, "failed to load created key user")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetKeyUser returns a single key user.
func (s *Server) handleGetKeyUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := s.keys.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, key.ErrUserNotFound) {
			writeNotFound(w, "key user not found")
			return
		}
		s.logger.Error("failed to get key user", "user_id", id, "error", err)
		writeInternalError(w, "failed to get key user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleUpdateKeyUser updates a key user's name and email.
func (s *Server) handleUpdateKeyUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req keyUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.keys.UpdateUser(r.Context(), &key.KeyUser{ID: id, Name: req.Name, Email: req.Email})
	if err != nil {
		switch {
		case errors.Is(err, key.ErrUserNotFound):
			writeNotFound(w, "key user not found")
		case errors.Is(err, key.ErrNameRequired):
			writeBadRequest(w, "name is required")
		default:
			s.logger.Error("failed to update key user", "user_id", id, "error", err)
			writeInternalError(w, "failed to update key user")
		}
		return
	}

	updated, err := s.keys.GetUser(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load updated key user", "user_id", id, "error", err)
		writeInternalError(w, "failed to load updated key user")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleSetKeyUserActive toggles a key user's active flag.
// Deactivation suspends access on the next scan; nothing else changes.
func (s *Server) handleSetKeyUserActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.keys.SetUserActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, key.ErrUserNotFound) {
			writeNotFound(w, "key user not found")
			return
		}
		s.logger.Error("failed to set key user active", "user_id", id, "error", err)
		writeInternalError(w, "failed to set key user active")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteKeyUser removes a key user, releasing their key and
// cascading away their permissions.
func (s *Server) handleDeleteKeyUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.keys.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, key.ErrUserNotFound) {
			writeNotFound(w, "key user not found")
			return
		}
		s.logger.Error("failed to delete key user", "user_id", id, "error", err)
		writeInternalError(w, "failed to delete key user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
