package timer

import (
	"time"

	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ElapsedSeconds returns the whole seconds between lastUpdated (ms since
// epoch) and now. Unknown or future stamps count as no time elapsed.
func ElapsedSeconds(lastUpdated int64, now time.Time) int {
	if lastUpdated <= 0 {
		return 0
	}
	ms := now.UnixMilli() - lastUpdated
	if ms <= 0 {
		return 0
	}
	return int(ms / 1000)
}

// DriftCorrect returns the remaining seconds of a stored state as of now.
// Only a running state loses time. The result may be zero or negative.
func DriftCorrect(state models.TimerState, now time.Time) int {
	if !state.IsRunning {
		return state.RemainingSeconds
	}
	return state.RemainingSeconds - ElapsedSeconds(state.LastUpdated, now)
}

// StoppedStatus returns the status of a stopped countdown. A countdown with
// nothing left is expired; otherwise the writer's status is used, and a
// value written without one reads as paused.
func StoppedStatus(state models.TimerState) models.TimerStatus {
	switch {
	case state.RemainingSeconds <= 0:
		return models.TimerStatusExpired
	case state.Status == models.TimerStatusIdle:
		return models.TimerStatusIdle
	default:
		return models.TimerStatusPaused
	}
}

// restoreLocked loads the persisted state as the engine's own, drift
// correcting a running countdown. A countdown that ran out while no context
// was ticking expires immediately. An empty store is initialized with the
// default mode.
func (e *Engine) restoreLocked() {
	stored, ok := e.readLocked()
	if !ok {
		log.Info().Str("engine", e.name).Msg("no stored timer state, loading default mode")
		e.resetLocked(e.cfg.DefaultMinutes)
		return
	}

	e.stopLoopLocked()
	e.activeMinutes = e.modeMinutes(stored.ActiveMinutes)

	if stored.IsRunning {
		remaining := DriftCorrect(stored, e.clock.Now())
		if remaining <= 0 {
			e.expireLocked()
			return
		}
		e.remaining = remaining
		e.status = models.TimerStatusRunning
		e.startLoopLocked()
		e.persistLocked()
		e.emitLocked(EventStateChange)
		return
	}

	e.remaining = stored.RemainingSeconds
	e.status = StoppedStatus(stored)
	e.emitLocked(EventStateChange)
}

// reconcile adopts a state written by another context. The local loop is
// always stopped first and restarted only when the incoming state is still
// running after drift correction. Nothing is written back.
func (e *Engine) reconcile(incoming models.TimerState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.stopLoopLocked()
	e.activeMinutes = e.modeMinutes(incoming.ActiveMinutes)

	remaining := DriftCorrect(incoming, e.clock.Now())
	switch {
	case incoming.IsRunning && remaining > 0:
		e.remaining = remaining
		e.status = models.TimerStatusRunning
		e.startLoopLocked()
	case incoming.IsRunning:
		e.remaining = 0
		e.status = models.TimerStatusExpired
	default:
		e.remaining = incoming.RemainingSeconds
		e.status = StoppedStatus(incoming)
	}

	log.Debug().
		Str("engine", e.name).
		Str("status", string(e.status)).
		Int("remaining_seconds", e.remaining).
		Int("active_minutes", e.activeMinutes).
		Msg("reconciled with another context")
	e.emitLocked(EventSync)
}
