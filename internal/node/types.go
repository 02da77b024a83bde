package node

import "time"

// OnlineThreshold is the maximum heartbeat age before a node is
// considered offline. Nodes report every 30 seconds, so five minutes
// tolerates broker reconnects and brief WiFi dropouts.
const OnlineThreshold = 5 * time.Minute

// Node represents a door-reader device known to the system.
//
// Nodes self-register: a row appears when the first heartbeat arrives,
// identified by the device hostname. Room assignment and naming happen
// later through the admin API.
type Node struct {
	ID             string    `json:"id"`
	Name           *string   `json:"name"`
	RoomID         *string   `json:"room_id"`
	IPAddress      *string   `json:"ip_address"`
	MACAddress     *string   `json:"mac_address"`
	SignalStrength *int      `json:"signal_strength"`
	UptimeSeconds  *int64    `json:"uptime_seconds"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OnlineAt reports whether the node counts as online at the given instant.
//
// Online status is derived from heartbeat recency rather than stored, so
// a node that silently dies shows offline without any cleanup job.
func (n *Node) OnlineAt(now time.Time) bool {
	return now.Sub(n.LastSeen) < OnlineThreshold
}

// IsOnline reports whether the node counts as online right now.
func (n *Node) IsOnline() bool {
	return n.OnlineAt(time.Now())
}

// Heartbeat is a single liveness report from a door node.
//
// All telemetry fields are optional; nodes with older firmware omit them.
type Heartbeat struct {
	NodeID         string
	Name           *string
	IPAddress      *string
	MACAddress     *string
	SignalStrength *int
	UptimeSeconds  *int64
	ReceivedAt     time.Time
}
