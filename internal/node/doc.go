// Package node tracks door-reader devices and their liveness.
//
// Nodes self-register through MQTT heartbeats and never require manual
// enrolment. Online status is computed from heartbeat age at read time
// using OnlineThreshold; nothing marks a node offline explicitly.
package node
