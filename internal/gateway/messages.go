package gateway

// Wire formats for node messages. Nodes are ESP32 firmware with tight
// payload budgets, so field names stay short and camelCased.

// healthMessage is a heartbeat published on devices/{ns}/health/{nodeId}.
// Every telemetry field is optional.
type healthMessage struct {
	NodeID         string  `json:"nodeId"`
	Name           *string `json:"name"`
	IPAddress      *string `json:"ip"`
	MACAddress     *string `json:"mac"`
	SignalStrength *int    `json:"rssi"`
	UptimeSeconds  *int64  `json:"uptime"`
}

// readMessage is a card scan published on devices/{ns}/read/{nodeId}.
type readMessage struct {
	NodeID string `json:"nodeId"`
	CardID string `json:"cardId"`
	Mode   string `json:"mode"`
}

// Scan modes on the wire.
const (
	readModeEnroll = "enroll"
	readModeCheck  = "check"
)

// Decision payloads sent back on devices/{ns}/access/{nodeId}.
// Bare strings, not JSON: firmware does a literal compare.
const (
	payloadGrant = "GRANT"
	payloadDeny  = "DENY"
)

// adminCommand is sent on devices/{ns}/admin/{nodeId} to drive node
// behaviour during enrollment. CardID accompanies KEY_REG_SUCCESS so
// the node knows which card was registered.
type adminCommand struct {
	Command string  `json:"command"`
	CardID  *string `json:"cardId,omitempty"`
}

// Admin commands understood by node firmware.
const (
	// CommandStartKeyRegistration switches the node's next scan to
	// enrollment mode.
	CommandStartKeyRegistration = "START_KEY_REGISTRATION"

	// CommandKeyRegSuccess tells the node enrollment completed, so it
	// can flash the success pattern and return to normal operation.
	CommandKeyRegSuccess = "KEY_REG_SUCCESS"

	// CommandKeyRegFail tells the node enrollment was abandoned.
	CommandKeyRegFail = "KEY_REG_FAIL"
)
