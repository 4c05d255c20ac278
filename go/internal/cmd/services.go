package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focustimer/go/internal/config"
	"github.com/mcdev12/focustimer/go/internal/gateway"
	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

// Services is everything the server runs: one timer context attached to
// the configured slot and the gateway in front of it.
type Services struct {
	Slot    *statestore.Slot
	Timer   *timer.Engine
	Gateway *gateway.Service
}

func setupServices(ctx context.Context, cfg config.Config, opts ...statestore.OpenOption) (*Services, error) {
	// Slot → Engine → Gateway
	slot, err := statestore.Open(ctx, cfg.Store.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	engine := timer.New(slot, cfg.EngineConfig(), timer.WithName("server"))
	engine.Attach(ctx)

	gatewayService := gateway.NewService(gateway.DefaultConfig(), engine)

	return &Services{
		Slot:    slot,
		Timer:   engine,
		Gateway: gatewayService,
	}, nil
}

// Close records the final timer state and releases the store.
func (s *Services) Close() {
	s.Timer.Close()
	if err := s.Slot.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close state store")
	}
}
