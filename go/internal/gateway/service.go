package gateway

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focustimer/go/internal/timer"
)

// Service is the timer gateway: it relays engine events to WebSocket
// clients and serves the REST and RPC control surfaces.
type Service struct {
	controller        Controller
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	rpcHandler        *RPCHandler
	handlerOptions    []connect.HandlerOption
	events            <-chan timer.Event
}

// Config holds configuration for the timer gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	// EventBuffer is the engine subscription depth
	EventBuffer    int
	HandlerOptions []connect.HandlerOption
}

// DefaultConfig returns default configuration for the timer gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		EventBuffer:      64,
	}
}

// NewService creates a new timer gateway service. It subscribes to the
// controller immediately so no event between construction and Start is lost.
func NewService(config Config, controller Controller) *Service {
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	return &Service{
		controller:        controller,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, controller),
		stateHandler:      NewStateHandler(controller),
		rpcHandler:        NewRPCHandler(controller),
		handlerOptions:    config.HandlerOptions,
		events:            controller.Subscribe(config.EventBuffer),
	}
}

// Start relays engine events until ctx is done or the engine closes.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting timer gateway service")

	defer s.controller.Unsubscribe(s.events)

	go s.connectionManager.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("timer gateway service shutting down")
			return s.Stop()
		case ev, ok := <-s.events:
			if !ok {
				log.Info().Msg("timer closed, gateway stops relaying")
				<-ctx.Done()
				return s.Stop()
			}
			s.relay(ev)
		}
	}
}

func (s *Service) relay(ev timer.Event) {
	event, err := NewTimerEvent(EventType(ev.Type), ev.Snapshot)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to encode timer event")
		return
	}
	s.connectionManager.Broadcast(event)
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	// Connection manager will stop when context is cancelled
	log.Info().Msg("timer gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket, REST and RPC routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	s.rpcHandler.RegisterRoutes(mux, s.handlerOptions...)
	log.Info().Msg("timer gateway routes registered")
}

// Stats describes the gateway for health output.
type Stats struct {
	Service          string `json:"service"`
	Status           string `json:"status"`
	TotalConnections int    `json:"total_connections"`
	TimerStatus      string `json:"timer_status"`
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	return Stats{
		Service:          "timer_gateway",
		Status:           "running",
		TotalConnections: s.connectionManager.GetConnectionStats().TotalConnections,
		TimerStatus:      string(s.controller.Snapshot().Status),
	}
}

// BroadcastEvent allows manual event broadcasting
func (s *Service) BroadcastEvent(event *TimerEvent) {
	s.connectionManager.Broadcast(event)
}
