package timer

import (
	"context"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Store is the persisted slot an Engine reads, writes and watches.
// *statestore.Slot implements it.
type Store interface {
	Write(ctx context.Context, state models.TimerState)
	Read(ctx context.Context) (models.TimerState, bool)
	Subscribe(ctx context.Context, handler func(models.TimerState))
}

// Engine is one context's countdown. All mutation happens under mu, including
// the store write that follows it, so a context's writes land in the order
// its transitions happened.
type Engine struct {
	store Store
	cfg   Config
	clock clockwork.Clock
	name  string

	mu            sync.Mutex
	status        models.TimerStatus
	remaining     int
	activeMinutes int
	loop          *tickLoop
	loopGen       uint64
	subscribers   []chan Event
	attached      bool
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an idle engine loaded with the default mode. Nothing is read
// or written until Attach or a command.
func New(store Store, cfg Config, opts ...Option) *Engine {
	cfg = cfg.normalize()
	e := &Engine{
		store:         store,
		cfg:           cfg,
		clock:         clockwork.NewRealClock(),
		name:          "timer",
		status:        models.TimerStatusIdle,
		remaining:     cfg.DefaultMinutes * 60,
		activeMinutes: cfg.DefaultMinutes,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach subscribes to changes made by other contexts and restores the
// persisted state. Store operations are bounded by ctx until Close.
func (e *Engine) Attach(ctx context.Context) {
	e.mu.Lock()
	if e.closed || e.attached {
		e.mu.Unlock()
		return
	}
	e.attached = true
	e.cancel()
	e.ctx, e.cancel = context.WithCancel(ctx)
	subCtx := e.ctx
	e.mu.Unlock()

	e.store.Subscribe(subCtx, e.reconcile)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.restoreLocked()
	log.Info().
		Str("engine", e.name).
		Str("status", string(e.status)).
		Int("remaining_seconds", e.remaining).
		Int("active_minutes", e.activeMinutes).
		Msg("timer attached")
}

// Activate re-reads the store and drift-corrects, as when a
// backgrounded context regains focus.
func (e *Engine) Activate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.restoreLocked()
}

// Start begins or resumes the countdown. An expired or empty countdown is
// reloaded from the active mode first. Starting a running timer does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.startLocked()
}

// Pause stops the countdown. Pausing a timer that is not running does
// nothing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pauseLocked()
}

// Toggle pauses a running timer and starts any other.
func (e *Engine) Toggle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.status == models.TimerStatusRunning {
		e.pauseLocked()
		return
	}
	e.startLocked()
}

// Reset reloads the active mode's full duration and goes idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.resetLocked(e.activeMinutes)
}

// SelectMode switches to the mode lasting minutes and goes idle, even when
// running. Unknown durations select the default mode.
func (e *Engine) SelectMode(minutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.resetLocked(e.modeMinutes(minutes))
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Display returns the current render output.
func (e *Engine) Display() Display {
	return e.Snapshot().Display
}

// Modes returns the selectable modes.
func (e *Engine) Modes() []models.Mode {
	return slices.Clone(e.cfg.Modes)
}

// Close persists the current state with the actual running flag, stops the
// countdown, ends the store subscription and closes every event channel.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	running := e.status == models.TimerStatusRunning
	e.stopLoopLocked()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), e.cfg.StoreTimeout)
	e.store.Write(ctx, e.stateLocked(running))
	cancel()

	e.closed = true
	e.cancel()
	e.closeSubscribersLocked()
	log.Info().
		Str("engine", e.name).
		Bool("is_running", running).
		Int("remaining_seconds", e.remaining).
		Msg("timer closed")
}

func (e *Engine) startLocked() {
	if e.status == models.TimerStatusRunning {
		return
	}
	if e.remaining <= 0 || e.status == models.TimerStatusExpired {
		e.remaining = e.activeMinutes * 60
	}
	e.status = models.TimerStatusRunning
	e.startLoopLocked()
	e.persistLocked()
	e.emitLocked(EventStateChange)
	log.Debug().Str("engine", e.name).Int("remaining_seconds", e.remaining).Msg("timer started")
}

func (e *Engine) pauseLocked() {
	if e.status != models.TimerStatusRunning {
		return
	}
	e.stopLoopLocked()
	e.status = models.TimerStatusPaused
	e.persistLocked()
	e.emitLocked(EventStateChange)
	log.Debug().Str("engine", e.name).Int("remaining_seconds", e.remaining).Msg("timer paused")
}

func (e *Engine) resetLocked(minutes int) {
	e.stopLoopLocked()
	e.activeMinutes = minutes
	e.remaining = minutes * 60
	e.status = models.TimerStatusIdle
	e.persistLocked()
	e.emitLocked(EventStateChange)
	log.Debug().Str("engine", e.name).Int("active_minutes", minutes).Msg("timer reset")
}

func (e *Engine) expireLocked() {
	e.stopLoopLocked()
	e.remaining = 0
	e.status = models.TimerStatusExpired
	e.persistLocked()
	e.emitLocked(EventStateChange)
	log.Info().Str("engine", e.name).Int("active_minutes", e.activeMinutes).Msg("timer expired")
}

// modeMinutes returns minutes when it names a configured mode and the
// default duration otherwise.
func (e *Engine) modeMinutes(minutes int) int {
	if hasMode(e.cfg.Modes, minutes) {
		return minutes
	}
	if minutes != 0 {
		log.Warn().
			Str("engine", e.name).
			Int("minutes", minutes).
			Int("default_minutes", e.cfg.DefaultMinutes).
			Msg("unknown mode, using default")
	}
	return e.cfg.DefaultMinutes
}

func (e *Engine) stateLocked(running bool) models.TimerState {
	state := models.TimerState{
		RemainingSeconds: e.remaining,
		IsRunning:        running,
		LastUpdated:      e.clock.Now().UnixMilli(),
		ActiveMinutes:    e.activeMinutes,
	}
	if !running {
		state.Status = e.status
	}
	return state
}

func (e *Engine) persistLocked() {
	ctx, cancel := e.opContext()
	defer cancel()
	e.store.Write(ctx, e.stateLocked(e.status == models.TimerStatusRunning))
}

func (e *Engine) readLocked() (models.TimerState, bool) {
	ctx, cancel := e.opContext()
	defer cancel()
	return e.store.Read(ctx)
}

func (e *Engine) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, e.cfg.StoreTimeout)
}

func (e *Engine) snapshotLocked() Snapshot {
	running := e.status == models.TimerStatusRunning
	return Snapshot{
		Status:           e.status,
		RemainingSeconds: e.remaining,
		ActiveMinutes:    e.activeMinutes,
		Display:          NewDisplay(e.remaining, running),
		At:               e.clock.Now(),
	}
}
