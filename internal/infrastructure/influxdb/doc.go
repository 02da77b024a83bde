// Package influxdb provides optional node telemetry recording for Keylock Core.
//
// Door nodes report WiFi signal strength and uptime in their heartbeats; when
// InfluxDB is enabled in config, the liveness tracker forwards these readings
// here as batched, non-blocking writes. Telemetry is strictly best-effort:
// failures never affect heartbeat processing or access decisions.
package influxdb
