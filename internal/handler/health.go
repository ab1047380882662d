package handler

import (
	"net/http"

	"github.com/syncroom/collab-platform/internal/relay"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	bridge *relay.Bridge
}

// NewHealthHandler creates a new health handler. bridge may be nil when the
// relay runs standalone.
func NewHealthHandler(bridge *relay.Bridge) *HealthHandler {
	return &HealthHandler{bridge: bridge}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.bridge != nil && !h.bridge.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS bridge not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
