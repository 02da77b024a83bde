package access

import "time"

// StatusCode identifies the outcome of an access check.
//
// Exactly one code applies per scan; the deny codes name the first link
// that failed in the key -> user -> node -> room -> permission chain.
type StatusCode string

// Access check outcomes.
const (
	StatusGranted StatusCode = "GRANTED"

	// Deny codes, in chain order.
	StatusTagNotFound    StatusCode = "DENIED_TAG_NOT_FOUND"
	StatusKeyInactive    StatusCode = "DENIED_KEY_INACTIVE"
	StatusKeyUnassigned  StatusCode = "DENIED_KEY_UNASSIGNED"
	StatusUserInactive   StatusCode = "DENIED_USER_INACTIVE"
	StatusNodeUnassigned StatusCode = "DENIED_NODE_UNASSIGNED"
	StatusNoPermission   StatusCode = "DENIED_NO_PERMISSION"

	// Error codes. These also deny, but flag an operational problem
	// rather than a policy decision.
	StatusNodeNotFound StatusCode = "ERROR_NODE_NOT_FOUND"
	StatusProcessing   StatusCode = "ERROR_PROCESSING"
)

// Decision is the result of resolving a scan against current policy.
//
// RoomID and KeyUserID are populated as far as resolution got before the
// chain broke, so denied decisions still carry whatever context exists.
type Decision struct {
	Granted    bool       `json:"granted"`
	Status     StatusCode `json:"status"`
	NodeID     string     `json:"node_id"`
	Tag        string     `json:"tag"`
	RoomID     *string    `json:"room_id"`
	KeyUserID  *string    `json:"key_user_id"`
	ResolvedAt time.Time  `json:"resolved_at"`
}

// Permission links a key user to a room they may enter.
type Permission struct {
	KeyUserID  string    `json:"key_user_id"`
	RoomID     string    `json:"room_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
