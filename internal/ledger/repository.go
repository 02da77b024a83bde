package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for ledger persistence.
type Repository interface {
	Record(ctx context.Context, nodeID, tag string, granted bool, reason string) error
	List(ctx context.Context, f Filter) (*Page, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed ledger repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record appends an access attempt.
//
// The room and key user snapshots are resolved inside the insert from
// the current node assignment and key registration. Either subquery may
// come up empty (unknown tag, unassigned node); the raw node id and tag
// are always stored.
func (r *SQLiteRepository) Record(ctx context.Context, nodeID, tag string, granted bool, reason string) error {
	const query = `INSERT INTO access_logs (node_id, rfid_tag, access_granted, reason, room_id, key_user_id)
		VALUES (?, ?, ?, ?,
			(SELECT room_id FROM nodes WHERE id = ?),
			(SELECT key_user_id FROM keys WHERE key_id = ?))`
	grantedInt := 0
	if granted {
		grantedInt = 1
	}
	_, err := r.db.ExecContext(ctx, query, nodeID, tag, grantedInt, reason, nodeID, tag)
	if err != nil {
		return fmt.Errorf("recording access attempt on %s: %w", nodeID, err)
	}
	return nil
}

// List returns a page of entries, newest first.
//
// One extra row is fetched beyond the limit; its presence means another
// page exists and the last returned entry's id becomes the next cursor.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var conds []string
	var args []any
	if f.NodeID != nil {
		conds = append(conds, "l.node_id = ?")
		args = append(args, *f.NodeID)
	}
	if f.RoomID != nil {
		conds = append(conds, "l.room_id = ?")
		args = append(args, *f.RoomID)
	}
	if f.KeyUserID != nil {
		conds = append(conds, "l.key_user_id = ?")
		args = append(args, *f.KeyUserID)
	}
	if f.Cursor != nil {
		conds = append(conds, "l.id < ?")
		args = append(args, *f.Cursor)
	}

	query := `SELECT l.id, l.timestamp, l.node_id, l.rfid_tag, l.access_granted,
		l.reason, l.room_id, l.key_user_id,
		n.name, r.name, u.name
		FROM access_logs l
		LEFT JOIN nodes n ON n.id = l.node_id
		LEFT JOIN rooms r ON r.id = l.room_id
		LEFT JOIN key_users u ON u.id = l.key_user_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY l.id DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var timestamp string
		var granted int
		var reason, roomID, userID, nodeName, roomName, userName sql.NullString
		err := rows.Scan(&e.ID, &timestamp, &e.NodeID, &e.RFIDTag, &granted,
			&reason, &roomID, &userID, &nodeName, &roomName, &userName)
		if err != nil {
			return nil, fmt.Errorf("scanning access log row: %w", err)
		}
		e.Timestamp = parseTime(timestamp)
		e.AccessGranted = granted != 0
		if reason.Valid {
			e.Reason = &reason.String
		}
		if roomID.Valid {
			e.RoomID = &roomID.String
		}
		if userID.Valid {
			e.KeyUserID = &userID.String
		}
		if nodeName.Valid {
			e.NodeName = &nodeName.String
		}
		if roomName.Valid {
			e.RoomName = &roomName.String
		}
		if userName.Valid {
			e.KeyUserName = &userName.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access log rows: %w", err)
	}

	page := &Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
