package key

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for key and key user persistence.
type Repository interface {
	CreateUser(ctx context.Context, u *KeyUser) error
	ListUsers(ctx context.Context) ([]KeyUser, error)
	GetUser(ctx context.Context, id string) (*KeyUser, error)
	UpdateUser(ctx context.Context, u *KeyUser) error
	SetUserActive(ctx context.Context, id string, active bool) error
	DeleteUser(ctx context.Context, id string) error

	CreateKey(ctx context.Context, k *Key) error
	ListKeys(ctx context.Context) ([]Key, error)
	GetKey(ctx context.Context, id string) (*Key, error)
	GetByTag(ctx context.Context, tag string) (*Key, error)
	SetKeyActive(ctx context.Context, id string, active bool) error
	AssignUser(ctx context.Context, keyID string, userID *string) error
	DeleteKey(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed key repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateUser inserts a new key user. New users start active.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *KeyUser) error {
	if u.Name == "" {
		return ErrNameRequired
	}
	const query = `INSERT INTO key_users (id, name, email, is_active) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, nullStr(u.Email), boolInt(u.IsActive))
	if err != nil {
		return fmt.Errorf("inserting key user %s: %w", u.ID, err)
	}
	return nil
}

// ListUsers returns all key users ordered by name.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]KeyUser, error) {
	const query = `SELECT id, name, email, is_active, created_at, updated_at
		FROM key_users ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying key users: %w", err)
	}
	defer rows.Close()

	var users []KeyUser
	for rows.Next() {
		var u KeyUser
		var email sql.NullString
		var active int
		var createdAt, updatedAt string
		if err := rows.Scan(&u.ID, &u.Name, &email, &active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning key user row: %w", err)
		}
		if email.Valid {
			u.Email = &email.String
		}
		u.IsActive = active != 0
		u.CreatedAt = parseTime(createdAt)
		u.UpdatedAt = parseTime(updatedAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating key user rows: %w", err)
	}
	return users, nil
}

// GetUser returns a single key user by ID.
func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*KeyUser, error) {
	const query = `SELECT id, name, email, is_active, created_at, updated_at
		FROM key_users WHERE id = ?`
	var u KeyUser
	var email sql.NullString
	var active int
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &email, &active, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning key user: %w", err)
	}
	if email.Valid {
		u.Email = &email.String
	}
	u.IsActive = active != 0
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// UpdateUser updates a key user's name and email.
func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *KeyUser) error {
	if u.Name == "" {
		return ErrNameRequired
	}
	const query = `UPDATE key_users SET name = ?, email = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, u.Name, nullStr(u.Email), u.ID)
	if err != nil {
		return fmt.Errorf("updating key user %s: %w", u.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserActive toggles a key user's active flag.
func (r *SQLiteRepository) SetUserActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE key_users SET is_active = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("setting key user %s active=%t: %w", id, active, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a key user.
// Their key is released by the FK (key_user_id set NULL) and their room
// permissions are removed by the cascade.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM key_users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting key user %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateKey registers a new RFID tag.
//
// Returns ErrKeyIDTaken when the tag is already registered, active or
// not, and ErrUserHasKey when the assigned user already holds a key.
// Failed registration never disturbs the existing key.
func (r *SQLiteRepository) CreateKey(ctx context.Context, k *Key) error {
	if k.KeyID == "" {
		return ErrTagRequired
	}
	const query = `INSERT INTO keys (id, key_id, name, is_active, key_user_id)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		k.ID, k.KeyID, nullStr(k.Name), boolInt(k.IsActive), nullStr(k.KeyUserID))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			if strings.Contains(sqliteErr.Error(), "keys.key_user_id") {
				return ErrUserHasKey
			}
			return ErrKeyIDTaken
		}
		return fmt.Errorf("inserting key %s: %w", k.ID, err)
	}
	return nil
}

// ListKeys returns all keys ordered by creation time.
func (r *SQLiteRepository) ListKeys(ctx context.Context) ([]Key, error) {
	const query = `SELECT id, key_id, name, is_active, key_user_id, created_at, updated_at
		FROM keys ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		k, err := scanKeyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning key row: %w", err)
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating key rows: %w", err)
	}
	return keys, nil
}

// GetKey returns a single key by ID.
func (r *SQLiteRepository) GetKey(ctx context.Context, id string) (*Key, error) {
	const query = `SELECT id, key_id, name, is_active, key_user_id, created_at, updated_at
		FROM keys WHERE id = ?`
	return r.getKey(ctx, query, id)
}

// GetByTag returns the key registered for an RFID tag.
// This is the resolver's entry point during access checks.
func (r *SQLiteRepository) GetByTag(ctx context.Context, tag string) (*Key, error) {
	const query = `SELECT id, key_id, name, is_active, key_user_id, created_at, updated_at
		FROM keys WHERE key_id = ?`
	return r.getKey(ctx, query, tag)
}

func (r *SQLiteRepository) getKey(ctx context.Context, query, arg string) (*Key, error) {
	var k Key
	var name, userID sql.NullString
	var active int
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&k.ID, &k.KeyID, &name, &active, &userID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("scanning key: %w", err)
	}
	if name.Valid {
		k.Name = &name.String
	}
	if userID.Valid {
		k.KeyUserID = &userID.String
	}
	k.IsActive = active != 0
	k.CreatedAt = parseTime(createdAt)
	k.UpdatedAt = parseTime(updatedAt)
	return &k, nil
}

// SetKeyActive toggles a key's active flag.
func (r *SQLiteRepository) SetKeyActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE keys SET is_active = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("setting key %s active=%t: %w", id, active, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// AssignUser sets or clears the key's holder.
// Pass nil to release the key. Returns ErrUserHasKey when the target user
// already holds a different key.
func (r *SQLiteRepository) AssignUser(ctx context.Context, keyID string, userID *string) error {
	const query = `UPDATE keys SET key_user_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, nullStr(userID), keyID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrUserHasKey
		}
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return ErrUserNotFound
		}
		return fmt.Errorf("assigning key %s: %w", keyID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// DeleteKey removes a key. The physical tag becomes unrecognised
// immediately; the ledger keeps its raw tag value in past entries.
func (r *SQLiteRepository) DeleteKey(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting key %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// scanKeyRow scans a key from a Rows cursor.
func scanKeyRow(rows *sql.Rows) (*Key, error) {
	var k Key
	var name, userID sql.NullString
	var active int
	var createdAt, updatedAt string
	err := rows.Scan(&k.ID, &k.KeyID, &name, &active, &userID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		k.Name = &name.String
	}
	if userID.Valid {
		k.KeyUserID = &userID.String
	}
	k.IsActive = active != 0
	k.CreatedAt = parseTime(createdAt)
	k.UpdatedAt = parseTime(updatedAt)
	return &k, nil
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// boolInt converts a bool to the INTEGER 0/1 representation.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
