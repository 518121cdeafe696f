// Package realtime pushes studio events to an account's open websocket connections.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub tracks the live clients of every account.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.email]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.email] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes the client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.email]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.email)
		}
	}
	h.mu.Unlock()
}

// Publish sends v as JSON to every connection of email. Slow clients miss messages
// instead of blocking the publisher.
func (h *Hub) Publish(email string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshal realtime event", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[email] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("realtime client buffer full, dropping event", "email", email)
		}
	}
}

// Disconnect closes every connection of email, e.g. on logout.
func (h *Hub) Disconnect(email string) {
	h.mu.Lock()
	for c := range h.clients[email] {
		close(c.send)
	}
	delete(h.clients, email)
	h.mu.Unlock()
}

func (h *Hub) ClientCount(email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[email])
}
