// Package relay implements the websocket relay: it accepts client
// connections and fans every frame out to all of them. The relay is an
// opaque distributor; it never interprets event payloads.
package relay

import (
	"context"
	"sync"

	"github.com/syncroom/collab-platform/pkg/logger"
	"github.com/syncroom/collab-platform/pkg/metrics"
)

// frame is one broadcastable message with its origin, used to keep bridged
// frames from echoing back into the bridge.
type frame struct {
	data   []byte
	source string
}

const (
	sourceClient = "client"
	sourceREST   = "rest"
	sourceBridge = "bridge"
)

// Hub maintains the set of connected clients and broadcasts frames to all
// of them.
type Hub struct {
	log *logger.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan frame

	mu      sync.RWMutex
	clients map[*Client]bool

	bridge Publisher
}

// Publisher forwards locally-originated frames to peer relay instances.
type Publisher interface {
	Publish(data []byte) error
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan frame, 64),
		clients:    make(map[*Client]bool),
	}
}

// SetBridge attaches a cross-instance publisher. Must be called before Run.
func (h *Hub) SetBridge(p Publisher) {
	h.bridge = p
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			metrics.IncrementWSConnections()
			h.log.Info("client connected", "client_id", c.id, "clients", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.DecrementWSConnections()
			}
			h.mu.Unlock()
			h.log.Info("client disconnected", "client_id", c.id, "clients", h.ClientCount())

		case f := <-h.broadcast:
			h.fanOut(f)

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
				metrics.DecrementWSConnections()
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) fanOut(f frame) {
	metrics.BroadcastsTotal.WithLabelValues(f.source).Inc()

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- f.data:
		default:
			// Slow consumer; drop the frame rather than block the hub.
			h.log.Warn("send buffer full, dropping frame", "client_id", c.id)
		}
	}
	h.mu.RUnlock()

	if h.bridge != nil && f.source != sourceBridge {
		if err := h.bridge.Publish(f.data); err != nil {
			h.log.Warn("bridge publish failed", "error", err)
		}
	}
}

// Broadcast fans a frame out to every connected client. Source labels the
// origin for metrics and bridge loop prevention.
func (h *Hub) Broadcast(data []byte, source string) {
	h.broadcast <- frame{data: data, source: source}
}

// BroadcastFromBridge injects a frame received from a peer relay.
func (h *Hub) BroadcastFromBridge(data []byte) {
	h.broadcast <- frame{data: data, source: sourceBridge}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
