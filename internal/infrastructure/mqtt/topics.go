package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Keylock MQTT scheme.
//
// Device topics are namespaced per deployment:
//
//	devices/{namespace}/{channel}/{nodeId}
//
// where channel is one of health, read, access, admin. The namespace defaults
// to "keylock" and is configurable (mqtt.namespace) so several deployments can
// share a broker.
const (
	// TopicPrefixDevices is the base for all device topics.
	TopicPrefixDevices = "devices"

	// TopicPrefixSystem is the base for Core system topics.
	TopicPrefixSystem = "keylock/system"
)

// Topics provides builders for Keylock MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Namespace: "keylock"}
//	topic := topics.NodeAccess("door-entry-01")
//	// Returns: "devices/keylock/access/door-entry-01"
type Topics struct {
	// Namespace is the deployment namespace segment. Empty defaults to "keylock".
	Namespace string
}

// ns returns the effective namespace.
func (t Topics) ns() string {
	if t.Namespace == "" {
		return "keylock"
	}
	return t.Namespace
}

// NodeHealth returns the topic a node publishes periodic heartbeats on.
//
// Example: devices/keylock/health/door-entry-01
func (t Topics) NodeHealth(nodeID string) string {
	return fmt.Sprintf("%s/%s/health/%s", TopicPrefixDevices, t.ns(), nodeID)
}

// NodeRead returns the topic a node publishes RFID scan events on.
//
// Example: devices/keylock/read/door-entry-01
func (t Topics) NodeRead(nodeID string) string {
	return fmt.Sprintf("%s/%s/read/%s", TopicPrefixDevices, t.ns(), nodeID)
}

// NodeAccess returns the topic Core publishes access decisions on.
// The payload is the literal token GRANT or DENY.
//
// Example: devices/keylock/access/door-entry-01
func (t Topics) NodeAccess(nodeID string) string {
	return fmt.Sprintf("%s/%s/access/%s", TopicPrefixDevices, t.ns(), nodeID)
}

// NodeAdmin returns the topic Core publishes admin commands on
// (key registration start/result).
//
// Example: devices/keylock/admin/door-entry-01
func (t Topics) NodeAdmin(nodeID string) string {
	return fmt.Sprintf("%s/%s/admin/%s", TopicPrefixDevices, t.ns(), nodeID)
}

// AllHealth returns a pattern matching heartbeats from every node.
//
// Pattern: devices/keylock/health/+
func (t Topics) AllHealth() string {
	return fmt.Sprintf("%s/%s/health/+", TopicPrefixDevices, t.ns())
}

// AllReads returns a pattern matching scan events from every node.
//
// Pattern: devices/keylock/read/+
func (t Topics) AllReads() string {
	return fmt.Sprintf("%s/%s/read/+", TopicPrefixDevices, t.ns())
}

// SystemStatus returns the Core online/offline status topic.
// Used for the retained status message and the Last Will and Testament.
//
// Example: keylock/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// NodeFromTopic extracts the node id (final segment) from a device topic.
// Returns an empty string if the topic has no node segment.
func NodeFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
