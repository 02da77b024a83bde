package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keylock-project/keylock-core/internal/key"
)

// keyCreateRequest is the body for registering a key. KeyID usually
// comes from a staged enrollment scan.
type keyCreateRequest struct {
	KeyID     string  `json:"key_id"`
	Name      *string `json:"name"`
	KeyUserID *string `json:"key_user_id"`
}

// keyHolderRequest sets or clears a key's holder.
type keyHolderRequest struct {
	KeyUserID *string `json:"key_user_id"`
}

// handleListKeys returns all registered keys.
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.keys.ListKeys(r.Context())
	if err != nil {
		s.logger.Error("failed to list keys", "error", err)
		writeInternalError(w, "failed to list keys")
		return
	}
	if keys == nil {
		keys = []key.Key{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleCreateKey registers a new key. New keys start active.
//
// Responds 409 when the tag is already registered; the existing key and
// its assignment are untouched.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req keyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	k := &key.Key{
		ID:        uuid.New().String(),
		KeyID:     req.KeyID,
		Name:      req.Name,
		IsActive:  true,
		KeyUserID: req.KeyUserID,
	}
	if err := s.keys.CreateKey(r.Context(), k); err != nil {
		switch {
		case errors.Is(err, key.ErrTagRequired):
			writeBadRequest(w, "key_id is required")
		case errors.Is(err, key.ErrKeyIDTaken):
			writeConflict(w, "tag is already registered")
		case errors.Is(err, key.ErrUserHasKey):
			writeConflict(w, "user already holds a key")
		default:
			s.logger.Error("failed to create key", "error", err)
			writeInternalError(w, "failed to create key")
		}
		return
	}

	created, err := s.keys.GetKey(r.Context(), k.ID)
	if err != nil {
		s.logger.Error("failed to load created key", "error", err)
		writeInternalError(w, "failed to load created key")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetKey returns a single key.
func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	k, err := s.keys.GetKey(r.Context(), id)
	if err != nil {
		if errors.Is(err, key.ErrKeyNotFound) {
			writeNotFound(w, "key not found")
			return
		}
		s.logger.Error("failed to get key", "key_id", id, "error", err)
		writeInternalError(w, "failed to get key")
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// handleSetKeyActive toggles a key's active flag.
func (s *Server) handleSetKeyActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.keys.SetKeyActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, key.ErrKeyNotFound) {
			writeNotFound(w, "key not found")
			return
		}
		s.logger.Error("failed to set key active", "key_id", id, "error", err)
		writeInternalError(w, "failed to set key active")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignKeyHolder sets or clears a key's holder.
func (s *Server) handleAssignKeyHolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req keyHolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.keys.AssignUser(r.Context(), id, req.KeyUserID); err != nil {
		switch {
		case errors.Is(err, key.ErrKeyNotFound):
			writeNotFound(w, "key not found")
		case errors.Is(err, key.ErrUserNotFound):
			writeBadRequest(w, "key user not found")
		case errors.Is(err, key.ErrUserHasKey):
			writeConflict(w, "user already holds a key")
		default:
			s.logger.Error("failed to assign key holder", "key_id", id, "error", err)
			writeInternalError(w, "failed to assign key holder")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteKey removes a key.
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.keys.DeleteKey(r.Context(), id); err != nil {
		if errors.Is(err, key.ErrKeyNotFound) {
			writeNotFound(w, "key not found")
			return
		}
		s.logger.Error("failed to delete key", "key_id", id, "error", err)
		writeInternalError(w, "failed to delete key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
