package node

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for node persistence operations.
type Repository interface {
	Upsert(ctx context.Context, hb *Heartbeat) error
	List(ctx context.Context) ([]Node, error)
	Get(ctx context.Context, id string) (*Node, error)
	Rename(ctx context.Context, id, name string) error
	AssignRoom(ctx context.Context, id string, roomID *string) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed node repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert records a heartbeat, creating the node row on first contact.
//
// Telemetry fields the heartbeat omits keep their previous values, so a
// firmware that stops reporting RSSI does not erase the last reading.
// Replaying the same heartbeat is harmless.
func (r *SQLiteRepository) Upsert(ctx context.Context, hb *Heartbeat) error {
	if hb.NodeID == "" {
		return ErrIDRequired
	}
	seen := hb.ReceivedAt
	if seen.IsZero() {
		seen = time.Now().UTC()
	}

	const query = `INSERT INTO nodes (id, name, ip_address, mac_address, signal_strength, uptime_seconds, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name            = COALESCE(excluded.name, nodes.name),
			ip_address      = COALESCE(excluded.ip_address, nodes.ip_address),
			mac_address     = COALESCE(excluded.mac_address, nodes.mac_address),
			signal_strength = COALESCE(excluded.signal_strength, nodes.signal_strength),
			uptime_seconds  = COALESCE(excluded.uptime_seconds, nodes.uptime_seconds),
			last_seen       = excluded.last_seen,
			updated_at      = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`
	_, err := r.db.ExecContext(ctx, query,
		hb.NodeID, nullStr(hb.Name), nullStr(hb.IPAddress), nullStr(hb.MACAddress),
		nullInt(hb.SignalStrength), nullInt64(hb.UptimeSeconds),
		seen.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting node %s: %w", hb.NodeID, err)
	}
	return nil
}

// List returns all nodes ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Node, error) {
	const query = `SELECT id, name, room_id, ip_address, mac_address,
		signal_strength, uptime_seconds, last_seen, created_at, updated_at
		FROM nodes ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}
	return nodes, nil
}

// Get returns a single node by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Node, error) {
	const query = `SELECT id, name, room_id, ip_address, mac_address,
		signal_strength, uptime_seconds, last_seen, created_at, updated_at
		FROM nodes WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var n Node
	var name, roomID, ipAddr, macAddr sql.NullString
	var signal, uptime sql.NullInt64
	var lastSeen, createdAt, updatedAt string

	err := row.Scan(&n.ID, &name, &roomID, &ipAddr, &macAddr,
		&signal, &uptime, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}
	populateNode(&n, name, roomID, ipAddr, macAddr, signal, uptime, lastSeen, createdAt, updatedAt)
	return &n, nil
}

// Rename sets the admin-facing display name of a node.
func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	const query = `UPDATE nodes SET name = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, name, id)
	if err != nil {
		return fmt.Errorf("renaming node %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignRoom sets or clears a node's room assignment.
// Pass nil to detach the node from its room.
func (r *SQLiteRepository) AssignRoom(ctx context.Context, id string, roomID *string) error {
	const query = `UPDATE nodes SET room_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, nullStr(roomID), id)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return ErrRoomNotFound
		}
		return fmt.Errorf("assigning node %s to room: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a node by ID.
// The node re-registers on its next heartbeat if it is still powered.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting node %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanNodeRow scans a node from a Rows cursor.
func scanNodeRow(rows *sql.Rows) (*Node, error) {
	var n Node
	var name, roomID, ipAddr, macAddr sql.NullString
	var signal, uptime sql.NullInt64
	var lastSeen, createdAt, updatedAt string

	err := rows.Scan(&n.ID, &name, &roomID, &ipAddr, &macAddr,
		&signal, &uptime, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	populateNode(&n, name, roomID, ipAddr, macAddr, signal, uptime, lastSeen, createdAt, updatedAt)
	return &n, nil
}

// populateNode fills the nullable and timestamp fields of a scanned node.
func populateNode(n *Node, name, roomID, ipAddr, macAddr sql.NullString,
	signal, uptime sql.NullInt64, lastSeen, createdAt, updatedAt string) {
	if name.Valid {
		n.Name = &name.String
	}
	if roomID.Valid {
		n.RoomID = &roomID.String
	}
	if ipAddr.Valid {
		n.IPAddress = &ipAddr.String
	}
	if macAddr.Valid {
		n.MACAddress = &macAddr.String
	}
	if signal.Valid {
		v := int(signal.Int64)
		n.SignalStrength = &v
	}
	if uptime.Valid {
		v := uptime.Int64
		n.UptimeSeconds = &v
	}
	n.LastSeen = parseTime(lastSeen)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullInt converts a *int to a sql.NullInt64 for nullable columns.
func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullInt64 converts a *int64 to a sql.NullInt64 for nullable columns.
func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
