package access

import "errors"

// Sentinel errors for permission operations.
var (
	// ErrNotGranted indicates a revoke targeted a permission that does not exist.
	ErrNotGranted = errors.New("access: permission not granted")

	// ErrGrantTargetMissing indicates a grant referenced a missing user or room.
	ErrGrantTargetMissing = errors.New("access: user or room not found")
)
