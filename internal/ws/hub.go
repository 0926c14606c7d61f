// Package ws provides the live availability feed: a websocket hub of
// connected observers and a broadcaster that periodically pushes the
// current set of available doctors to all of them.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventAvailableDoctors is the event name availability snapshots are
// published under.
const EventAvailableDoctors = "available_doctors"

// Event is the wire envelope pushed to observers.
type Event struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single connected observer.
type Client struct {
	ID   string
	Send chan []byte
	conn Conn
}

// NewClient wraps a connection in a client with a buffered send queue.
func NewClient(id string, conn Conn) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, 256),
		conn: conn,
	}
}

// Hub tracks connected observers. All operations are thread-safe.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub and returns the new client count.
func (h *Hub) Register(client *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
	return len(h.clients)
}

// Unregister removes a client, closes its send channel, and returns
// the remaining client count.
func (h *Hub) Unregister(client *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return len(h.clients)
	}
	delete(h.clients, client)
	close(client.Send)
	return len(h.clients)
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends an event to every connected observer. A client
// with a full send buffer is skipped rather than blocking the
// broadcast.
func (h *Hub) BroadcastAll(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal broadcast event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}
