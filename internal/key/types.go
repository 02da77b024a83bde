package key

import "time"

// KeyUser is a person who can hold an RFID key.
//
// Deactivating a user suspends all access without touching their key or
// room permissions, so reactivation restores everything.
type KeyUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key is a registered RFID tag.
//
// KeyID is the physical tag identifier read by door nodes; it is unique
// across the whole system regardless of active state. A key belongs to at
// most one user, and a user holds at most one key.
type Key struct {
	ID        string    `json:"id"`
	KeyID     string    `json:"key_id"`
	Name      *string   `json:"name"`
	IsActive  bool      `json:"is_active"`
	KeyUserID *string   `json:"key_user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
