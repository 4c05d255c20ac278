package timer

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// tickLoop is the single repeating task of a running engine.
type tickLoop struct {
	gen    uint64
	ticker clockwork.Ticker
	stop   chan struct{}
}

// startLoopLocked replaces any active loop with a fresh one.
func (e *Engine) startLoopLocked() {
	e.stopLoopLocked()

	e.loopGen++
	l := &tickLoop{
		gen:    e.loopGen,
		ticker: e.clock.NewTicker(e.cfg.TickInterval),
		stop:   make(chan struct{}),
	}
	e.loop = l

	go e.runLoop(l)

	log.Debug().
		Str("engine", e.name).
		Uint64("loop", l.gen).
		Dur("interval", e.cfg.TickInterval).
		Msg("tick loop started")
}

// stopLoopLocked cancels the active loop, if any.
func (e *Engine) stopLoopLocked() {
	if e.loop == nil {
		return
	}
	e.loop.ticker.Stop()
	close(e.loop.stop)
	log.Debug().Str("engine", e.name).Uint64("loop", e.loop.gen).Msg("tick loop stopped")
	e.loop = nil
}

func (e *Engine) runLoop(l *tickLoop) {
	for {
		select {
		case <-l.stop:
			return
		case <-l.ticker.Chan():
			e.tick(l.gen)
		}
	}
}

// tick decrements the countdown by one second. A tick from a loop that was
// replaced or stopped while it waited for the lock is dropped.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loop == nil || e.loop.gen != gen || e.status != models.TimerStatusRunning {
		log.Debug().Str("engine", e.name).Uint64("loop", gen).Msg("dropping stale tick")
		return
	}

	e.remaining--
	if e.remaining <= 0 {
		e.expireLocked()
		return
	}
	e.persistLocked()
	e.emitLocked(EventTick)
}
