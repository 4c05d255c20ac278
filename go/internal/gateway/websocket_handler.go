package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for timer watchers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	controller        Controller
}

// NewWebSocketHandler creates a new WebSocket handler. Commands received on
// a connection are applied to controller.
func NewWebSocketHandler(cm *ConnectionManager, controller Controller) *WebSocketHandler {
	h := &WebSocketHandler{
		connectionManager: cm,
		controller:        controller,
	}
	cm.onMessage = h.handleMessage
	return h
}

// HandleTimerConnection upgrades the request and greets the client with the
// current snapshot.
func (h *WebSocketHandler) HandleTimerConnection(w http.ResponseWriter, r *http.Request) {
	// For development, allow anonymous connections
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "anonymous"
	}

	greeting, err := NewTimerEvent(EventTypeSnapshot, h.controller.Snapshot())
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot event")
		http.Error(w, "failed to read timer state", http.StatusInternalServerError)
		return
	}

	// Upgrade writes its own error response on handshake failure
	if err := h.connectionManager.UpgradeConnection(w, r, clientID, greeting); err != nil {
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

func (h *WebSocketHandler) handleMessage(c *Connection, msg ClientMessage) {
	err := Dispatch(h.controller, msg)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrUnknownAction) && !errors.Is(err, ErrInvalidMinutes) {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to apply client command")
	}
	h.connectionManager.SendTo(c, newErrorEvent(err.Error()))
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/timer", h.HandleTimerConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
