// Package bus is the event fan-out layer between the enforcement pipeline
// and live dashboard sessions. It routes opaque JSON payloads by topic over
// NATS; delivery is live-only (no replay) and best-effort from the
// publisher's perspective.
package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Fixed topic set. These names are also what dashboard clients see in
// websocket frames; on the wire they map to NATS subjects under "events.".
const (
	TopicViolationNew      = "violation:new"
	TopicViolationVerified = "violation:verified"
	TopicFineGenerated     = "fine:generated"
	TopicAlertNew          = "alert:new"
	TopicAlertStatusChange = "alert:status_change"
	TopicCameraOffline     = "camera:offline"
	TopicCameraDegraded    = "camera:degraded"
	TopicCameraRecovered   = "camera:recovered"
)

// Topics lists every topic the dashboard relay subscribes to.
var Topics = []string{
	TopicViolationNew,
	TopicViolationVerified,
	TopicFineGenerated,
	TopicAlertNew,
	TopicAlertStatusChange,
	TopicCameraOffline,
	TopicCameraDegraded,
	TopicCameraRecovered,
}

// Publisher is the capability handed to the pipeline, the alert policy and
// the liveness monitor. Publish failures are non-fatal for callers: real-time
// notification is an enhancement, never a correctness dependency.
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// Bus wraps a NATS connection with JSON encoding and topic-to-subject
// mapping. Construct with Connect and pass by reference; call Close on
// shutdown.
type Bus struct {
	conn *nats.Conn
}

// Connect dials the NATS broker at the given URL.
func Connect(url string) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name("trafficgrid-backend"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// Publish marshals the payload and fires it at the topic's subject. It does
// not wait for subscriber acknowledgment.
func (b *Bus) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	if err := b.conn.Publish(subjectFor(topic), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler for one topic. Handlers run on the NATS
// client's delivery goroutine and must not block.
func (b *Bus) Subscribe(topic string, handler func(data []byte)) (*nats.Subscription, error) {
	return b.conn.Subscribe(subjectFor(topic), func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains and closes the connection.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// subjectFor maps a topic name to a NATS subject. Colons separate
// entity and event in topic names but are token-significant to NATS,
// so they become subject dots under the "events" root.
func subjectFor(topic string) string {
	return "events." + strings.ReplaceAll(topic, ":", ".")
}
