package ws

import (
	"sort"
	"sync"
)

// Hub maintains the set of active clients grouped by topic. All operations
// apply in call order, so a client never sees an older snapshot after a
// newer one for the same topic.
type Hub struct {
	// Registered clients by topic
	rooms map[string]map[*Client]bool

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

// Register adds c to its topic room. When initial is non-nil it is queued
// ahead of any later broadcast.
func (h *Hub) Register(c *Client, initial []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.topic] == nil {
		h.rooms[c.topic] = make(map[*Client]bool)
	}
	h.rooms[c.topic][c] = true
	if initial != nil {
		h.deliver(c, initial)
	}
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// Broadcast sends message to every client subscribed to topic.
func (h *Hub) Broadcast(topic string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[topic] {
		h.deliver(client, message)
	}
}

// Topics lists every topic with at least one subscriber, sorted.
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	topics := make([]string, 0, len(h.rooms))
	for t := range h.rooms {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// deliver must be called with mu held.
func (h *Hub) deliver(c *Client, message []byte) {
	select {
	case c.send <- message:
	default:
		// Client's send buffer is full, close and unregister
		h.drop(c)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	clients, ok := h.rooms[c.topic]
	if !ok {
		return
	}
	if _, exists := clients[c]; !exists {
		return
	}
	delete(clients, c)
	close(c.send)
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(h.rooms, c.topic)
	}
}
