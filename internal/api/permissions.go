package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keylock-project/keylock-core/internal/access"
)

// handleListUserPermissions returns the rooms a key user may enter.
func (s *Server) handleListUserPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	perms, err := s.perms.ListForUser(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list user permissions", "user_id", id, "error", err)
		writeInternalError(w, "failed to list permissions")
		return
	}
	if perms == nil {
		perms = []access.Permission{}
	}
	writeJSON(w, http.StatusOK, perms)
}

// handleListRoomPermissions returns the key users permitted in a room.
func (s *Server) handleListRoomPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	perms, err := s.perms.ListForRoom(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list room permissions", "room_id", id, "error", err)
		writeInternalError(w, "failed to list permissions")
		return
	}
	if perms == nil {
		perms = []access.Permission{}
	}
	writeJSON(w, http.StatusOK, perms)
}

// handleGrantPermission grants a key user access to a room.
// Granting twice is a no-op, so PUT is naturally idempotent.
func (s *Server) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	roomID := chi.URLParam(r, "roomId")

	if err := s.perms.Grant(r.Context(), userID, roomID); err != nil {
		if errors.Is(err, access.ErrGrantTargetMissing) {
			writeNotFound(w, "key user or room not found")
			return
		}
		s.logger.Error("failed to grant permission",
			"user_id", userID, "room_id", roomID, "error", err)
		writeInternalError(w, "failed to grant permission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRevokePermission removes a key user's access to a room.
// Takes effect on the next scan.
func (s *Server) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	roomID := chi.URLParam(r, "roomId")

	if err := s.perms.Revoke(r.Context(), userID, roomID); err != nil {
		if errors.Is(err, access.ErrNotGranted) {
			writeNotFound(w, "permission not granted")
			return
		}
		s.logger.Error("failed to revoke permission",
			"user_id", userID, "room_id", roomID, "error", err)
		writeInternalError(w, "failed to revoke permission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
