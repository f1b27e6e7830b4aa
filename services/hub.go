// Package services provides business logic services
package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/trafficgrid/backend/bus"
)

// EventFrame is what dashboard clients receive: the topic name plus the
// payload exactly as published.
type EventFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// EventHub relays bus events to all connected dashboard WebSocket sessions.
// Fan-out is live-only: a client connecting after a publish never sees the
// missed message. A slow client drops frames rather than blocking the rest.
type EventHub struct {
	bus *bus.Bus

	clients   map[*EventClient]bool
	clientsMu sync.RWMutex

	register   chan *EventClient
	unregister chan *EventClient

	subs []*nats.Subscription
}

// NewEventHub creates a hub over an already-connected bus.
func NewEventHub(b *bus.Bus) *EventHub {
	return &EventHub{
		bus:        b,
		clients:    make(map[*EventClient]bool),
		register:   make(chan *EventClient),
		unregister: make(chan *EventClient),
	}
}

// Start subscribes the hub to every fan-out topic.
func (h *EventHub) Start() error {
	for _, topic := range bus.Topics {
		topic := topic
		sub, err := h.bus.Subscribe(topic, func(data []byte) {
			h.broadcast(topic, data)
		})
		if err != nil {
			h.Stop()
			return err
		}
		h.subs = append(h.subs, sub)
	}
	log.Printf("📺 Event hub subscribed to %d topics", len(h.subs))
	return nil
}

// Stop drops the bus subscriptions.
func (h *EventHub) Stop() {
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
}

// Register adds a client to the hub.
func (h *EventHub) Register(client *EventClient) {
	h.register <- client
}

// Run processes client connects/disconnects until the context ends.
func (h *EventHub) Run(ctx context.Context) {
	log.Println("📺 Event hub started")

	for {
		select {
		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("📺 Dashboard client connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("📺 Dashboard client disconnected: %s", client.remoteAddr)
		}
	}
}

// broadcast fans one event out to every connected client. Runs on the NATS
// delivery goroutine, so sends must not block.
func (h *EventHub) broadcast(topic string, payload []byte) {
	frame, err := json.Marshal(EventFrame{Topic: topic, Payload: payload})
	if err != nil {
		log.Printf("⚠️ Failed to encode %s frame: %v", topic, err)
		return
	}

	h.clientsMu.RLock()
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// Client buffer full, drop the frame. Dashboards poll as a
			// fallback, so a dropped notification is recoverable.
		}
	}
	h.clientsMu.RUnlock()
}

// HubStats reports hub state for the stats endpoint.
type HubStats struct {
	Clients int      `json:"clients"`
	Topics  []string `json:"topics"`
}

func (h *EventHub) Stats() HubStats {
	h.clientsMu.RLock()
	clientCount := len(h.clients)
	h.clientsMu.RUnlock()

	return HubStats{
		Clients: clientCount,
		Topics:  bus.Topics,
	}
}
