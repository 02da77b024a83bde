package node

import (
	"context"
	"fmt"
	"time"

	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
)

// TelemetrySink receives node telemetry extracted from heartbeats.
// Implemented by the InfluxDB client; nil disables telemetry.
type TelemetrySink interface {
	WriteNodeTelemetry(nodeID string, signalStrength *int, uptimeSeconds *int64)
}

// Tracker processes heartbeats from door nodes.
//
// Each heartbeat updates the node's last-seen timestamp and telemetry in
// SQLite, and forwards readings to the telemetry sink when one is
// configured. Persistence is authoritative; telemetry is best-effort.
type Tracker struct {
	repo      Repository
	telemetry TelemetrySink
	logger    *logging.Logger
}

// NewTracker creates a heartbeat tracker.
// telemetry may be nil when InfluxDB is disabled.
func NewTracker(repo Repository, telemetry TelemetrySink, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{
		repo:      repo,
		telemetry: telemetry,
		logger:    logger.With("component", "node.tracker"),
	}
}

// Heartbeat records a liveness report.
//
// The node row is created on first contact. ReceivedAt defaults to now
// when the caller leaves it zero.
func (t *Tracker) Heartbeat(ctx context.Context, hb *Heartbeat) error {
	if hb.ReceivedAt.IsZero() {
		hb.ReceivedAt = time.Now().UTC()
	}

	if err := t.repo.Upsert(ctx, hb); err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}

	if t.telemetry != nil {
		t.telemetry.WriteNodeTelemetry(hb.NodeID, hb.SignalStrength, hb.UptimeSeconds)
	}

	t.logger.Debug("heartbeat recorded",
		"node_id", hb.NodeID,
		"received_at", hb.ReceivedAt)
	return nil
}
