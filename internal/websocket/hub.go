package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"medwaste-backend/internal/events"
	"medwaste-backend/internal/metrics"
)

// Hub maintains active dashboard connections and fans change signals out to
// all of them. Dashboards re-fetch the entity named in the signal.
type Hub struct {
	// Registered clients (client ID -> Client); one user may have several tabs open
	clients map[string]*Client

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// ChangeMessage is what dashboards receive.
type ChangeMessage struct {
	Type string       `json:"type"`
	Data events.Event `json:"data"`
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			metrics.WebsocketClients.Set(0)
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(count))
			log.Printf("✅ [WEBSOCKET] Client CONNECTED: user %s (%s), %d connected", client.UserID, client.UserRole, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(count))
			log.Printf("🔴 [WEBSOCKET] Client DISCONNECTED: user %s, %d remaining", client.UserID, count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full, disconnect
					close(client.send)
					delete(h.clients, id)
					log.Printf("⚠️ Client buffer full, disconnecting: %s", client.UserID)
				}
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

func (h *Hub) addClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) removeClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// HandleEvent is an events.Handler. It never blocks the publisher; if the
// hub is backed up the signal is dropped.
func (h *Hub) HandleEvent(ev events.Event) {
	data, err := json.Marshal(ChangeMessage{Type: "change", Data: ev})
	if err != nil {
		log.Printf("❌ Failed to marshal change message: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Printf("⚠️ [WEBSOCKET] Broadcast queue full, dropping %s for %s", ev.Type, ev.EntityID)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
