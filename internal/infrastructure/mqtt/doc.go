// Package mqtt provides MQTT client connectivity for Keylock Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the transport between Core and the door-reader nodes. The broker
// (typically Mosquitto) decouples Core from the devices: nodes publish
// heartbeats and scan events, Core publishes access decisions and admin
// commands.
//
//	Door Nodes ↔ MQTT Broker ↔ Keylock Core
//
// # Topic Scheme
//
//	devices/{ns}/health/{nodeId}  - node → core, periodic heartbeat JSON
//	devices/{ns}/read/{nodeId}    - node → core, RFID scan event JSON
//	devices/{ns}/access/{nodeId}  - core → node, literal GRANT or DENY token
//	devices/{ns}/admin/{nodeId}   - core → node, admin command JSON
//	keylock/system/status         - core status (retained, LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Namespace: cfg.MQTT.Namespace}
//	err = client.Subscribe(topics.AllReads(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("scan: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
