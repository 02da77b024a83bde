// Package mqtttest provides an in-memory MQTT client for tests.
package mqtttest

import (
	"fmt"
	"sync"

	"github.com/keylock-project/keylock-core/internal/infrastructure/mqtt"
)

// Publish is one captured publish call.
type Publish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Client records subscriptions and publishes, and lets tests deliver
// inbound messages to registered handlers. Topic matching supports the
// single-level + wildcard in the final segment, which is all the
// gateway uses.
type Client struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	publishes []Publish

	// PublishErr, when set, is returned from every Publish call.
	PublishErr error

	// SubscribeErr, when set, is returned from every Subscribe call.
	SubscribeErr error
}

// NewClient creates an empty fake client.
func NewClient() *Client {
	return &Client{handlers: make(map[string]mqtt.MessageHandler)}
}

// Subscribe records the handler for later delivery.
func (c *Client) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

// Publish captures the call.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishes = append(c.publishes, Publish{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

// HasSubscription reports whether a handler is registered for the exact
// filter string.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

// Deliver routes a message to the handler whose filter matches the topic
// and returns the handler's error.
func (c *Client) Deliver(topic string, payload []byte) error {
	c.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range c.handlers {
		if matches(filter, topic) {
			handler = h
			break
		}
	}
	c.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("no subscription matches %q", topic)
	}
	return handler(topic, payload)
}

// LastPublish returns the most recent publish, or nil when none happened.
func (c *Client) LastPublish() *Publish {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.publishes) == 0 {
		return nil
	}
	p := c.publishes[len(c.publishes)-1]
	return &p
}

// Publishes returns all captured publishes in order.
func (c *Client) Publishes() []Publish {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Publish(nil), c.publishes...)
}

// matches implements exact match plus a trailing + wildcard segment.
func matches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if len(filter) > 0 && filter[len(filter)-1] == '+' {
		prefix := filter[:len(filter)-1]
		return len(topic) > len(prefix) && topic[:len(prefix)] == prefix
	}
	return false
}
