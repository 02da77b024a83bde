// Package gateway is the MQTT-facing edge of Keylock Core.
//
// Door nodes speak three topics: they publish heartbeats and card
// scans, and they listen for access decisions and admin commands. The
// gateway owns all four, translating between wire payloads and the
// domain packages. It holds no state of its own; a restart only drops
// in-flight messages, which QoS 1 redelivers.
package gateway
