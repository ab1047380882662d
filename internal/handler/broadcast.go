package handler

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/syncroom/collab-platform/internal/relay"
	"github.com/syncroom/collab-platform/pkg/logger"
)

// maxBroadcastBytes caps the REST broadcast payload.
const maxBroadcastBytes = 64 * 1024

// BroadcastHandler exposes the REST side-channel that fans a message to
// every connected websocket client.
type BroadcastHandler struct {
	hub    *relay.Hub
	logger *logger.Logger
}

// NewBroadcastHandler creates a new broadcast handler.
func NewBroadcastHandler(hub *relay.Hub, log *logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{hub: hub, logger: log}
}

// broadcastRequest is the POST /api/websocket-broadcast body. Message may
// be any JSON value; it is forwarded verbatim.
type broadcastRequest struct {
	Message json.RawMessage `json:"message"`
}

// broadcastResponse reports how many clients the frame was fanned out to.
type broadcastResponse struct {
	ClientCount int `json:"clientCount"`
}

// Broadcast handles POST /api/websocket-broadcast
func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBroadcastBytes)

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Message) == 0 {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if !utf8.Valid(req.Message) {
		writeError(w, http.StatusBadRequest, "message must be valid UTF-8")
		return
	}

	count := h.hub.ClientCount()
	h.hub.Broadcast(req.Message, "rest")
	h.logger.Info("rest broadcast", "bytes", len(req.Message), "clients", count)

	writeJSON(w, http.StatusOK, broadcastResponse{ClientCount: count})
}
