package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keylock-project/keylock-core/internal/access"
	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
	"github.com/keylock-project/keylock-core/internal/infrastructure/mqtt"
	"github.com/keylock-project/keylock-core/internal/ledger"
	"github.com/keylock-project/keylock-core/internal/node"
	"github.com/keylock-project/keylock-core/internal/scanstage"
)

// handlerTimeout bounds the database work done per inbound message.
const handlerTimeout = 10 * time.Second

// MQTTClient is the broker surface the gateway needs.
// Satisfied by *mqtt.Client; faked in tests.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventSink receives domain events for live subscribers.
// Implemented by the websocket hub; nil disables events.
type EventSink interface {
	Broadcast(event string, payload any)
}

// Event names emitted to the sink.
const (
	EventDecision   = "access.decision"
	EventScanStaged = "scan.staged"
	EventHeartbeat  = "node.heartbeat"
)

// Gateway connects door nodes to the decision pipeline.
//
// It subscribes to heartbeat and scan topics, routes heartbeats to the
// liveness tracker, resolves access scans and answers each one with a
// GRANT or DENY publish. The door must never wait on bookkeeping:
// ledger writes and event broadcasts happen after the decision is on
// the wire, and their failures are logged, not propagated.
type Gateway struct {
	client   MQTTClient
	topics   mqtt.Topics
	qos      byte
	resolver *access.Resolver
	tracker  *node.Tracker
	stage    *scanstage.Cache
	ledger   ledger.Repository
	events   EventSink
	logger   *logging.Logger
}

// Config collects the gateway's collaborators.
type Config struct {
	Client    MQTTClient
	Namespace string
	QoS       byte
	Resolver  *access.Resolver
	Tracker   *node.Tracker
	Stage     *scanstage.Cache
	Ledger    ledger.Repository
	Events    EventSink
	Logger    *logging.Logger
}

// New creates a gateway. Call Start to begin receiving messages.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		client:   cfg.Client,
		topics:   mqtt.Topics{Namespace: cfg.Namespace},
		qos:      cfg.QoS,
		resolver: cfg.Resolver,
		tracker:  cfg.Tracker,
		stage:    cfg.Stage,
		ledger:   cfg.Ledger,
		events:   cfg.Events,
		logger:   logger.With("component", "gateway"),
	}
}

// Start subscribes to the node topics.
//
// Subscription failures are logged and retried implicitly on the next
// broker reconnect; a broker hiccup at boot must not kill the process
// while doors keep scanning.
func (g *Gateway) Start() {
	if err := g.client.Subscribe(g.topics.AllHealth(), g.qos, g.handleHealth); err != nil {
		g.logger.Error("failed to subscribe to health topic", "error", err)
	}
	if err := g.client.Subscribe(g.topics.AllReads(), g.qos, g.handleRead); err != nil {
		g.logger.Error("failed to subscribe to read topic", "error", err)
	}
	g.logger.Info("gateway started",
		"health_topic", g.topics.AllHealth(),
		"read_topic", g.topics.AllReads())
}

// handleHealth processes a heartbeat message.
func (g *Gateway) handleHealth(topic string, payload []byte) error {
	nodeID := mqtt.NodeFromTopic(topic)
	if nodeID == "" {
		return fmt.Errorf("heartbeat on malformed topic %q", topic)
	}

	var msg healthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("malformed heartbeat from %s: %w", nodeID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	hb := &node.Heartbeat{
		NodeID:         nodeID,
		Name:           msg.Name,
		IPAddress:      msg.IPAddress,
		MACAddress:     msg.MACAddress,
		SignalStrength: msg.SignalStrength,
		UptimeSeconds:  msg.UptimeSeconds,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := g.tracker.Heartbeat(ctx, hb); err != nil {
		return fmt.Errorf("processing heartbeat from %s: %w", nodeID, err)
	}

	g.broadcast(EventHeartbeat, map[string]any{
		"node_id":   nodeID,
		"last_seen": hb.ReceivedAt,
	})
	return nil
}

// handleRead processes a card scan.
func (g *Gateway) handleRead(topic string, payload []byte) error {
	nodeID := mqtt.NodeFromTopic(topic)
	if nodeID == "" {
		return fmt.Errorf("scan on malformed topic %q", topic)
	}

	var msg readMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("malformed scan from %s: %w", nodeID, err)
	}
	if msg.CardID == "" {
		return fmt.Errorf("scan from %s missing card id", nodeID)
	}

	if msg.Mode == readModeEnroll {
		g.stageScan(nodeID, msg.CardID, scanstage.ModeEnrollment)
		return nil
	}

	// Anything other than an explicit enroll is an access check.
	g.stageScan(nodeID, msg.CardID, scanstage.ModeAccessCheck)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	decision := g.resolver.Resolve(ctx, nodeID, msg.CardID)
	if err := g.PublishDecision(decision); err != nil {
		g.logger.Error("failed to publish decision",
			"node_id", nodeID,
			"status", decision.Status,
			"error", err)
	}

	if err := g.ledger.Record(ctx, nodeID, msg.CardID, decision.Granted, string(decision.Status)); err != nil {
		g.logger.Error("failed to record access attempt",
			"node_id", nodeID,
			"error", err)
	}

	g.broadcast(EventDecision, decision)

	g.logger.Info("access decision",
		"node_id", nodeID,
		"granted", decision.Granted,
		"status", decision.Status)
	return nil
}

// stageScan caches the scan and announces it.
func (g *Gateway) stageScan(nodeID, cardID string, mode scanstage.Mode) {
	g.stage.Record(nodeID, cardID, mode)
	g.broadcast(EventScanStaged, map[string]any{
		"node_id": nodeID,
		"mode":    mode,
	})
	g.logger.Info("scan staged", "node_id", nodeID, "mode", mode)
}

// PublishDecision sends GRANT or DENY to the node that asked.
// The payload is a bare string literal the firmware compares against.
func (g *Gateway) PublishDecision(d *access.Decision) error {
	payload := payloadDeny
	if d.Granted {
		payload = payloadGrant
	}
	topic := g.topics.NodeAccess(d.NodeID)
	if err := g.client.Publish(topic, []byte(payload), g.qos, false); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", payload, topic, err)
	}
	return nil
}

// SendAdminCommand publishes a command to a node's admin topic.
// Used by the enrollment flow to switch nodes in and out of
// registration mode. cardID is optional and rides along on
// registration results.
func (g *Gateway) SendAdminCommand(nodeID, command string, cardID *string) error {
	payload, err := json.Marshal(adminCommand{Command: command, CardID: cardID})
	if err != nil {
		return fmt.Errorf("encoding admin command: %w", err)
	}
	topic := g.topics.NodeAdmin(nodeID)
	if err := g.client.Publish(topic, payload, g.qos, false); err != nil {
		return fmt.Errorf("publishing admin command to %s: %w", topic, err)
	}
	g.logger.Info("admin command sent", "node_id", nodeID, "command", command)
	return nil
}

// broadcast forwards an event to the sink when one is wired.
func (g *Gateway) broadcast(event string, payload any) {
	if g.events != nil {
		g.events.Broadcast(event, payload)
	}
}
