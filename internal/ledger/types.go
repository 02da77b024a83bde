package ledger

import "time"

// DefaultPageSize is used when a list request leaves Limit unset.
const DefaultPageSize = 50

// MaxPageSize caps a single page regardless of the requested limit.
const MaxPageSize = 500

// Entry is one recorded access attempt.
//
// NodeID and RFIDTag are stored raw so entries survive deletion of the
// entities they mention. RoomID and KeyUserID are snapshots of the
// assignments at scan time; the display names are joined at read time
// and go nil when the entity is gone.
type Entry struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	NodeID        string    `json:"node_id"`
	RFIDTag       string    `json:"rfid_tag"`
	AccessGranted bool      `json:"access_granted"`
	Reason        *string   `json:"reason"`
	RoomID        *string   `json:"room_id"`
	KeyUserID     *string   `json:"key_user_id"`

	NodeName    *string `json:"node_name,omitempty"`
	RoomName    *string `json:"room_name,omitempty"`
	KeyUserName *string `json:"key_user_name,omitempty"`
}

// Filter narrows and pages a ledger listing.
//
// Cursor is the id of the last entry from the previous page; listing
// resumes strictly below it. Nil filters match everything.
type Filter struct {
	NodeID    *string
	RoomID    *string
	KeyUserID *string
	Cursor    *int64
	Limit     int
}

// Page is one page of ledger entries, newest first.
// NextCursor is nil on the final page.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor *int64  `json:"next_cursor"`
}
