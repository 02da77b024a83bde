package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// PermissionRepository defines the interface for permission persistence.
type PermissionRepository interface {
	Grant(ctx context.Context, keyUserID, roomID string) error
	Revoke(ctx context.Context, keyUserID, roomID string) error
	Has(ctx context.Context, keyUserID, roomID string) (bool, error)
	ListForUser(ctx context.Context, keyUserID string) ([]Permission, error)
	ListForRoom(ctx context.Context, roomID string) ([]Permission, error)
}

// SQLitePermissionRepository implements PermissionRepository using SQLite.
type SQLitePermissionRepository struct {
	db *sql.DB
}

// NewSQLitePermissionRepository creates a new SQLite-backed permission repository.
func NewSQLitePermissionRepository(db *sql.DB) *SQLitePermissionRepository {
	return &SQLitePermissionRepository{db: db}
}

// Grant gives a key user access to a room. Granting an existing
// permission is a no-op, so repeated grants are safe.
func (r *SQLitePermissionRepository) Grant(ctx context.Context, keyUserID, roomID string) error {
	const query = `INSERT INTO key_user_room_permissions (key_user_id, room_id)
		VALUES (?, ?)
		ON CONFLICT(key_user_id, room_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, keyUserID, roomID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return ErrGrantTargetMissing
		}
		return fmt.Errorf("granting room %s to user %s: %w", roomID, keyUserID, err)
	}
	return nil
}

// Revoke removes a key user's access to a room.
// Takes effect on the next scan; there is no cached policy to flush.
func (r *SQLitePermissionRepository) Revoke(ctx context.Context, keyUserID, roomID string) error {
	const query = `DELETE FROM key_user_room_permissions
		WHERE key_user_id = ? AND room_id = ?`
	result, err := r.db.ExecContext(ctx, query, keyUserID, roomID)
	if err != nil {
		return fmt.Errorf("revoking room %s from user %s: %w", roomID, keyUserID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotGranted
	}
	return nil
}

// Has reports whether a key user holds permission for a room.
func (r *SQLitePermissionRepository) Has(ctx context.Context, keyUserID, roomID string) (bool, error) {
	const query = `SELECT 1 FROM key_user_room_permissions
		WHERE key_user_id = ? AND room_id = ?`
	var one int
	err := r.db.QueryRowContext(ctx, query, keyUserID, roomID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking permission: %w", err)
	}
	return true, nil
}

// ListForUser returns all room permissions held by a key user.
func (r *SQLitePermissionRepository) ListForUser(ctx context.Context, keyUserID string) ([]Permission, error) {
	const query = `SELECT key_user_id, room_id, assigned_at
		FROM key_user_room_permissions WHERE key_user_id = ? ORDER BY room_id`
	return r.query(ctx, query, keyUserID)
}

// ListForRoom returns all key users permitted in a room.
func (r *SQLitePermissionRepository) ListForRoom(ctx context.Context, roomID string) ([]Permission, error) {
	const query = `SELECT key_user_id, room_id, assigned_at
		FROM key_user_room_permissions WHERE room_id = ? ORDER BY key_user_id`
	return r.query(ctx, query, roomID)
}

func (r *SQLitePermissionRepository) query(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		var assignedAt string
		if err := rows.Scan(&p.KeyUserID, &p.RoomID, &assignedAt); err != nil {
			return nil, fmt.Errorf("scanning permission row: %w", err)
		}
		p.AssignedAt = parseTime(assignedAt)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permission rows: %w", err)
	}
	return perms, nil
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
