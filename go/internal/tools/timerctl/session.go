package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/focustimer/go/internal/config"
	"github.com/mcdev12/focustimer/go/internal/gateway"
	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

// session is one way of reaching the timer: a local context attached to the
// shared slot, or a remote server over RPC.
type session interface {
	Snapshot(ctx context.Context) (timer.Snapshot, error)
	Do(ctx context.Context, action string) (timer.Snapshot, error)
	SelectMode(ctx context.Context, minutes int) (timer.Snapshot, error)
	Modes(ctx context.Context) ([]gateway.ModeInfo, error)
	Close()
}

type localSession struct {
	slot   *statestore.Slot
	engine *timer.Engine
}

func openLocal(ctx context.Context, cfg config.Config) (*localSession, error) {
	slot, err := statestore.Open(ctx, cfg.Store.Config)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	engine := timer.New(slot, cfg.EngineConfig(), timer.WithName("timerctl"))
	engine.Attach(ctx)
	return &localSession{slot: slot, engine: engine}, nil
}

func (s *localSession) Snapshot(ctx context.Context) (timer.Snapshot, error) {
	return s.engine.Snapshot(), nil
}

func (s *localSession) Do(ctx context.Context, action string) (timer.Snapshot, error) {
	if err := gateway.Dispatch(s.engine, gateway.ClientMessage{Action: action}); err != nil {
		return timer.Snapshot{}, err
	}
	return s.engine.Snapshot(), nil
}

func (s *localSession) SelectMode(ctx context.Context, minutes int) (timer.Snapshot, error) {
	if err := gateway.Dispatch(s.engine, gateway.ClientMessage{Action: "mode", Minutes: minutes}); err != nil {
		return timer.Snapshot{}, err
	}
	return s.engine.Snapshot(), nil
}

func (s *localSession) Modes(ctx context.Context) ([]gateway.ModeInfo, error) {
	return gateway.ModeInfos(s.engine), nil
}

// Close records the final state and releases the store.
func (s *localSession) Close() {
	s.engine.Close()
	if err := s.slot.Close(); err != nil {
		log.Error().Err(err).Str("key", s.slot.Key()).Msg("failed to close state store")
	}
}

type remoteSession struct {
	client *gateway.TimerClient
}

func openRemote(baseURL string) *remoteSession {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	return &remoteSession{client: gateway.NewTimerClient(httpClient, baseURL)}
}

func (s *remoteSession) Snapshot(ctx context.Context) (timer.Snapshot, error) {
	return snapshotFrom(s.client.GetState(ctx))
}

func (s *remoteSession) Do(ctx context.Context, action string) (timer.Snapshot, error) {
	return snapshotFrom(s.client.Do(ctx, action))
}

func (s *remoteSession) SelectMode(ctx context.Context, minutes int) (timer.Snapshot, error) {
	return snapshotFrom(s.client.SelectMode(ctx, minutes))
}

func (s *remoteSession) Modes(ctx context.Context) ([]gateway.ModeInfo, error) {
	msg, err := s.client.ListModes(ctx)
	if err != nil {
		return nil, err
	}
	var res gateway.ModesResponse
	if err := decodeStruct(msg, &res); err != nil {
		return nil, err
	}
	return res.Modes, nil
}

func (s *remoteSession) Close() {}

func snapshotFrom(msg *structpb.Struct, err error) (timer.Snapshot, error) {
	if err != nil {
		return timer.Snapshot{}, err
	}
	var snap timer.Snapshot
	if err := decodeStruct(msg, &snap); err != nil {
		return timer.Snapshot{}, err
	}
	return snap, nil
}

// decodeStruct maps a Struct onto v through its JSON field names.
func decodeStruct(msg *structpb.Struct, v any) error {
	data, err := json.Marshal(msg.AsMap())
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
