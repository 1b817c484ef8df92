package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/whathappened/internal/events"
)

// Message is pushed to a user's connections when one of their
// subscriptions changes.
type Message struct {
	Type  string    `json:"type"`
	Where string    `json:"where"`
	User  string    `json:"user"`
	At    time.Time `json:"at"`
}

// NewMessage converts a domain event into a Message.
func NewMessage(e events.Event) Message {
	return Message{
		Type:  e.Kind(),
		Where: e.Path(),
		User:  e.Owner(),
		At:    time.Now().UTC(),
	}
}

// Hub tracks active WebSocket clients per user and fans messages out to
// the connections of the message's user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.user]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.user] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.user]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.user)
	}
}

// Send delivers msg to every connection of msg.User.
func (h *Hub) Send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[msg.User] {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop message to avoid blocking
		}
	}
}

// Listener returns an events.Listener that forwards subscription events to
// the owning user's connections.
func (h *Hub) Listener() events.Listener {
	return func(e events.Event) {
		h.Send(NewMessage(e))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// UserCount returns the number of users with at least one connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
