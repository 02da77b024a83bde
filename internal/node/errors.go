package node

import "errors"

// Sentinel errors for node operations.
var (
	// ErrNotFound indicates the requested node does not exist.
	ErrNotFound = errors.New("node: not found")

	// ErrRoomNotFound indicates a room assignment referenced a missing room.
	ErrRoomNotFound = errors.New("node: room not found")

	// ErrIDRequired indicates a heartbeat arrived without a node identifier.
	ErrIDRequired = errors.New("node: id is required")
)
