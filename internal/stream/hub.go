// v0
// internal/stream/hub.go
// Package stream fans delivered events and alerts out to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
	"github.com/adilblanco/Kafka-iot-poc/internal/stats"
)

const broadcastBuffer = 256

// Message is the envelope sent to clients.
type Message struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// Hub keeps the set of connected clients and broadcasts to them.
type Hub struct {
	log        *slog.Logger
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
	dropped uint64
}

// NewHub returns a hub; call Run to start it.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log.With(slog.String("component", "stream_hub")),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.log.Info("stream_hub_stopped")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Info("stream_client_registered", slog.String("remote", c.remote))
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("stream_client_slow", slog.String("remote", c.remote))
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Info("stream_client_unregistered", slog.String("remote", c.remote))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ObservePublish implements dispatch.Observer. Only delivered payloads are
// streamed; when the buffer is full the message is dropped.
func (h *Hub) ObservePublish(a dispatch.Attempt) {
	if a.Err != nil || len(a.Payload) == 0 {
		return
	}
	kind := "event"
	if a.Role == stats.RoleAlerts {
		kind = "alert"
	}
	raw, err := json.Marshal(Message{Type: kind, Topic: a.Topic, Key: a.Key, Payload: json.RawMessage(a.Payload)})
	if err != nil {
		h.log.Error("stream_encode_err", slog.Any("err", err))
		return
	}
	select {
	case h.broadcast <- raw:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// Dropped returns how many messages were discarded on a full buffer.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
