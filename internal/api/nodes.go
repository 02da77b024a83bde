package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keylock-project/keylock-core/internal/gateway"
	"github.com/keylock-project/keylock-core/internal/node"
	"github.com/keylock-project/keylock-core/internal/scanstage"
)

// nodeResponse wraps a node with its computed online status.
type nodeResponse struct {
	node.Node
	Online bool `json:"online"`
}

// nodeUpdateRequest is the PATCH body for nodes. RoomID is raw so an
// explicit null (detach) can be told apart from an absent field.
type nodeUpdateRequest struct {
	Name   *string         `json:"name"`
	RoomID json.RawMessage `json:"room_id"`
}

// handleListNodes returns all nodes with their online status.
func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.nodes.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list nodes", "error", err)
		writeInternalError(w, "failed to list nodes")
		return
	}

	resp := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		resp = append(resp, nodeResponse{Node: n, Online: n.IsOnline()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetNode returns a single node.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.nodes.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, node.ErrNotFound) {
			writeNotFound(w, "node not found")
			return
		}
		s.logger.Error("failed to get node", "node_id", id, "error", err)
		writeInternalError(w, "failed to get node")
		return
	}
	writeJSON(w, http.StatusOK, nodeResponse{Node: *n, Online: n.IsOnline()})
}

// handleUpdateNode renames a node and/or changes its room assignment.
func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req nodeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name != nil {
		if err := s.nodes.Rename(r.Context(), id, *req.Name); err != nil {
			if errors.Is(err, node.ErrNotFound) {
				writeNotFound(w, "node not found")
				return
			}
			s.logger.Error("failed to rename node", "node_id", id, "error", err)
			writeInternalError(w, "failed to rename node")
			return
		}
	}

	if len(req.RoomID) > 0 {
		var roomID *string
		if string(req.RoomID) != "null" {
			var v string
			if err := json.Unmarshal(req.RoomID, &v); err != nil {
				writeBadRequest(w, "room_id must be a string or null")
				return
			}
			roomID = &v
		}
		if err := s.nodes.AssignRoom(r.Context(), id, roomID); err != nil {
			switch {
			case errors.Is(err, node.ErrNotFound):
				writeNotFound(w, "node not found")
			case errors.Is(err, node.ErrRoomNotFound):
				writeBadRequest(w, "room not found")
			default:
				s.logger.Error("failed to assign node room", "node_id", id, "error", err)
				writeInternalError(w, "failed to assign node room")
			}
			return
		}
	}

	n, err := s.nodes.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, node.ErrNotFound) {
			writeNotFound(w, "node not found")
			return
		}
		s.logger.Error("failed to load updated node", "node_id", id, "error", err)
		writeInternalError(w, "failed to load updated node")
		return
	}
	writeJSON(w, http.StatusOK, nodeResponse{Node: *n, Online: n.IsOnline()})
}

// handleDeleteNode removes a node record.
func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.nodes.Delete(r.Context(), id); err != nil {
		if errors.Is(err, node.ErrNotFound) {
			writeNotFound(w, "node not found")
			return
		}
		s.logger.Error("failed to delete node", "node_id", id, "error", err)
		writeInternalError(w, "failed to delete node")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetStagedScan polls the scan cache for a node.
//
// The mode query parameter selects which kind of staged scan the caller
// wants; polling is non-destructive, so the UI can poll freely while
// waiting for a card tap. Responds 404 while no matching scan is staged.
func (s *Server) handleGetStagedScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mode := scanstage.Mode(r.URL.Query().Get("mode"))
	switch mode {
	case "":
		mode = scanstage.ModeEnrollment
	case scanstage.ModeEnrollment, scanstage.ModeAccessCheck:
	default:
		writeBadRequest(w, "mode must be enrollment or access-check")
		return
	}

	scan, ok := s.stage.Peek(id, mode)
	if !ok {
		writeNotFound(w, "no scan staged")
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleClearStagedScan drops whatever scan is staged for a node.
func (s *Server) handleClearStagedScan(w http.ResponseWriter, r *http.Request) {
	s.stage.Clear(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// enrollmentCompleteRequest is the body for finishing an enrollment.
type enrollmentCompleteRequest struct {
	Success bool `json:"success"`
}

// handleStartEnrollment switches a node into key registration mode.
//
// The node's next scan will be staged as an enrollment scan instead of
// triggering an access check. Responds 502 when the command cannot
// reach the broker, since the door will not actually switch modes.
func (s *Server) handleStartEnrollment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.nodes.Get(r.Context(), id); err != nil {
		if errors.Is(err, node.ErrNotFound) {
			writeNotFound(w, "node not found")
			return
		}
		s.logger.Error("failed to get node", "node_id", id, "error", err)
		writeInternalError(w, "failed to get node")
		return
	}

	// A fresh enrollment starts from an empty slot.
	s.stage.Clear(id)

	if err := s.sendCommand(id, gateway.CommandStartKeyRegistration, nil); err != nil {
		s.logger.Error("failed to start enrollment", "node_id", id, "error", err)
		writeBadGateway(w, "could not reach the node")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleCompleteEnrollment tells the node how enrollment ended and
// clears the staged scan.
func (s *Server) handleCompleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req enrollmentCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	command := gateway.CommandKeyRegFail
	var cardID *string
	if req.Success {
		command = gateway.CommandKeyRegSuccess
		// Tell the node which card it just registered.
		if scan, ok := s.stage.Peek(id, scanstage.ModeEnrollment); ok {
			cardID = &scan.CardID
		}
	}

	s.stage.Clear(id)

	if err := s.sendCommand(id, command, cardID); err != nil {
		s.logger.Error("failed to complete enrollment", "node_id", id, "error", err)
		writeBadGateway(w, "could not reach the node")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// sendCommand forwards an admin command through the gateway.
func (s *Server) sendCommand(nodeID, command string, cardID *string) error {
	if s.commander == nil {
		return errors.New("node commander not configured")
	}
	return s.commander.SendAdminCommand(nodeID, command, cardID)
}
