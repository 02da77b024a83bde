package room

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the interface for room persistence operations.
type Repository interface {
	Create(ctx context.Context, rm *Room) error
	List(ctx context.Context) ([]Room, error)
	Get(ctx context.Context, id string) (*Room, error)
	Update(ctx context.Context, rm *Room) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed room repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new room into the database.
func (r *SQLiteRepository) Create(ctx context.Context, rm *Room) error {
	if rm.Name == "" {
		return ErrNameRequired
	}
	const query = `INSERT INTO rooms (id, name) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, query, rm.ID, rm.Name)
	if err != nil {
		return fmt.Errorf("inserting room %s: %w", rm.ID, err)
	}
	return nil
}

// List returns all rooms ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Room, error) {
	const query = `SELECT id, name, created_at, updated_at FROM rooms ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var rm Room
		var createdAt, updatedAt string
		if err := rows.Scan(&rm.ID, &rm.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rm.CreatedAt = parseTime(createdAt)
		rm.UpdatedAt = parseTime(updatedAt)
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// Get returns a single room by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Room, error) {
	const query = `SELECT id, name, created_at, updated_at FROM rooms WHERE id = ?`
	var rm Room
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rm.ID, &rm.Name, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	rm.CreatedAt = parseTime(createdAt)
	rm.UpdatedAt = parseTime(updatedAt)
	return &rm, nil
}

// Update renames an existing room.
func (r *SQLiteRepository) Update(ctx context.Context, rm *Room) error {
	if rm.Name == "" {
		return ErrNameRequired
	}
	const query = `UPDATE rooms SET name = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, rm.Name, rm.ID)
	if err != nil {
		return fmt.Errorf("updating room %s: %w", rm.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a room by ID.
//
// Member nodes are detached first inside the same transaction so they
// survive the delete with room_id cleared. Permissions referencing the
// room are removed by the FK cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning room delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "UPDATE nodes SET room_id = NULL WHERE room_id = ?", id); err != nil {
		return fmt.Errorf("detaching nodes from room %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing room delete: %w", err)
	}
	return nil
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
