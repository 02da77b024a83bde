package room

import "time"

// Room represents a physical space guarded by one or more door nodes.
//
// Access permissions are granted per room, not per node: a key user with
// permission for a room may enter through any node assigned to it.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
