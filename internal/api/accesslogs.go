package api

import (
	"net/http"
	"strconv"

	"github.com/keylock-project/keylock-core/internal/ledger"
)

// handleListAccessLogs returns a page of the access ledger, newest first.
//
// Query parameters:
//   - limit: page size (default 50, capped server side)
//   - cursor: id from the previous page's next_cursor
//   - node_id, room_id, key_user_id: optional filters
func (s *Server) handleListAccessLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f ledger.Filter
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		f.Limit = limit
	}
	if v := q.Get("cursor"); v != "" {
		cursor, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "cursor must be an integer")
			return
		}
		f.Cursor = &cursor
	}
	if v := q.Get("node_id"); v != "" {
		f.NodeID = &v
	}
	if v := q.Get("room_id"); v != "" {
		f.RoomID = &v
	}
	if v := q.Get("key_user_id"); v != "" {
		f.KeyUserID = &v
	}

	page, err := s.ledger.List(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list access logs", "error", err)
		writeInternalError(w, "failed to list access logs")
		return
	}
	if page.Entries == nil {
		page.Entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, page)
}
