package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StateHandler serves the timer over plain HTTP JSON
type StateHandler struct {
	controller Controller
}

// NewStateHandler creates a new state handler
func NewStateHandler(controller Controller) *StateHandler {
	return &StateHandler{
		controller: controller,
	}
}

// ModeRequest is the body of POST /api/timer/mode
type ModeRequest struct {
	Minutes int `json:"minutes"`
}

// ModesResponse lists the selectable modes
type ModesResponse struct {
	Modes []ModeInfo `json:"modes"`
}

// HandleGetState handles GET /api/timer/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// HandleGetModes handles GET /api/timer/modes
func (h *StateHandler) HandleGetModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModesResponse{Modes: ModeInfos(h.controller)})
}

// handleAction returns a handler applying a body-less command.
func (h *StateHandler) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := Dispatch(h.controller, ClientMessage{Action: action}); err != nil {
			log.Error().Err(err).Str("action", action).Msg("failed to apply timer command")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, h.controller.Snapshot())
	}
}

// HandleSelectMode handles POST /api/timer/mode
func (h *StateHandler) HandleSelectMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := Dispatch(h.controller, ClientMessage{Action: "mode", Minutes: req.Minutes}); err != nil {
		if errors.Is(err, ErrInvalidMinutes) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("failed to select mode")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/timer/state", h.HandleGetState)
	mux.HandleFunc("GET /api/timer/modes", h.HandleGetModes)
	mux.HandleFunc("POST /api/timer/mode", h.HandleSelectMode)
	for _, action := range []string{"start", "pause", "toggle", "reset"} {
		mux.HandleFunc("POST /api/timer/"+action, h.handleAction(action))
	}
}
