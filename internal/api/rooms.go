package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keylock-project/keylock-core/internal/room"
)

// roomRequest is the create/update body for rooms.
type roomRequest struct {
	Name string `json:"name"`
}

// handleListRooms returns all rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list rooms", "error", err)
		writeInternalError(w, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []room.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// handleCreateRoom creates a new room.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rm := &room.Room{
		ID:   uuid.New().String(),
		Name: req.Name,
	}
	if err := s.rooms.Create(r.Context(), rm); err != nil {
		if errors.Is(err, room.ErrNameRequired) {
			writeBadRequest(w, "name is required")
			return
		}
		s.logger.Error("failed to create room", "error", err)
		writeInternalError(w, "failed to create room")
		return
	}

	created, err := s.rooms.Get(r.Context(), rm.ID)
	if err != nil {
		s.logger.Error("failed to load created room", "error", err)
		writeInternalError(w, "failed to load created room")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetRoom returns a single room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rm, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		s.logger.Error("failed to get room", "room_id", id, "error", err)
		writeInternalError(w, "failed to get room")
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// handleUpdateRoom renames a room.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.rooms.Update(r.Context(), &room.Room{ID: id, Name: req.Name})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrNotFound):
			writeNotFound(w, "room not found")
		case errors.Is(err, room.ErrNameRequired):
			writeBadRequest(w, "name is required")
		default:
			s.logger.Error("failed to update room", "room_id", id, "error", err)
			writeInternalError(w, "failed to update room")
		}
		return
	}

	updated, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load updated room", "room_id", id, "error", err)
		writeInternalError(w, "failed to load updated room")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRoom deletes a room, detaching its nodes.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.rooms.Delete(r.Context(), id); err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		s.logger.Error("failed to delete room", "room_id", id, "error", err)
		writeInternalError(w, "failed to delete room")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
