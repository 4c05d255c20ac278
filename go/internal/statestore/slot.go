package statestore

import (
	"context"
	"errors"

	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned by a Backend when the slot holds no value.
	ErrNotFound = errors.New("statestore: slot is empty")
	// ErrClosed is returned by a Backend after Close.
	ErrClosed = errors.New("statestore: backend closed")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("statestore: unknown driver")
)

// Backend is a durable, per-key byte slot shared by every context attached
// to the same origin. Implementations notify subscribers of writes made by
// other contexts only, and never of writes to other keys.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	// Subscribe registers onChange and returns immediately. onChange is
	// invoked from a backend goroutine until ctx is done or the backend is
	// closed.
	Subscribe(ctx context.Context, onChange func()) error
	Close() error
}

// Slot stores a TimerState in a Backend. Storage failures never reach the
// caller: reads degrade to "absent" and writes are dropped.
type Slot struct {
	key     string
	backend Backend
}

// NewSlot wraps backend. key is only used for logging.
func NewSlot(key string, backend Backend) *Slot {
	return &Slot{key: key, backend: backend}
}

// Key returns the storage key the slot was opened with.
func (s *Slot) Key() string {
	return s.key
}

// Write persists state and notifies the other contexts of the origin.
func (s *Slot) Write(ctx context.Context, state models.TimerState) {
	data, err := Encode(state)
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("dropping timer state write")
		return
	}
	if err := s.backend.Save(ctx, data); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("dropping timer state write")
		return
	}
	log.Debug().
		Str("key", s.key).
		Int("remaining_seconds", state.RemainingSeconds).
		Bool("is_running", state.IsRunning).
		Msg("timer state written")
}

// Read returns the stored state, or false when nothing usable is stored.
func (s *Slot) Read(ctx context.Context) (models.TimerState, bool) {
	data, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("key", s.key).Msg("timer state unavailable")
		}
		return models.TimerState{}, false
	}
	state, ok := Decode(data)
	if !ok {
		log.Warn().Str("key", s.key).Msg("ignoring corrupt timer state")
	}
	return state, ok
}

// Subscribe invokes handler with the freshly read state whenever another
// context writes the slot. Absent or corrupt values are skipped.
func (s *Slot) Subscribe(ctx context.Context, handler func(models.TimerState)) {
	err := s.backend.Subscribe(ctx, func() {
		state, ok := s.Read(ctx)
		if !ok {
			return
		}
		handler(state)
	})
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("timer state notifications unavailable")
	}
}

// Close releases the backend.
func (s *Slot) Close() error {
	return s.backend.Close()
}
