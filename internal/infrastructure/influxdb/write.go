package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteNodeTelemetry records telemetry extracted from a node heartbeat.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Only fields present in the heartbeat are written.
//
// Parameters:
//   - nodeID: Door node identifier (hostname)
//   - signalStrength: WiFi RSSI in dBm (nil if not reported)
//   - uptimeSeconds: Device uptime in seconds (nil if not reported)
func (c *Client) WriteNodeTelemetry(nodeID string, signalStrength *int, uptimeSeconds *int64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if signalStrength != nil {
		fields["signal_strength"] = *signalStrength
	}
	if uptimeSeconds != nil {
		fields["uptime_seconds"] = *uptimeSeconds
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"node_health",
		map[string]string{
			"node_id": nodeID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
