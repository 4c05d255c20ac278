package timer

import (
	"time"

	"github.com/mcdev12/focustimer/go/internal/models"
)

// EventType names what caused an Event.
type EventType string

const (
	// EventStateChange follows a local transition: start, pause, reset,
	// mode switch, restore or expiry.
	EventStateChange EventType = "state_change"
	// EventTick follows a one-second decrement.
	EventTick EventType = "tick"
	// EventSync follows reconciliation with another context's write.
	EventSync EventType = "sync"
)

// Snapshot is a point-in-time view of an engine.
type Snapshot struct {
	Status           models.TimerStatus `json:"status"`
	RemainingSeconds int                `json:"remainingSeconds"`
	ActiveMinutes    int                `json:"activeMinutes"`
	Display          Display            `json:"display"`
	At               time.Time          `json:"at"`
}

// IsRunning reports whether the countdown is ticking.
func (s Snapshot) IsRunning() bool {
	return s.Status == models.TimerStatusRunning
}

// Event is delivered to subscribers after every observable change.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"data"`
}

// Subscribe returns a channel receiving every subsequent event. Delivery is
// non-blocking: a subscriber whose buffer is full misses the event. The
// channel is closed by Close.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch
	}
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (e *Engine) Unsubscribe(ch <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subscribers {
		if sub == ch {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

func (e *Engine) emitLocked(typ EventType) {
	event := Event{Type: typ, Snapshot: e.snapshotLocked()}
	for _, sub := range e.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

func (e *Engine) closeSubscribersLocked() {
	for _, sub := range e.subscribers {
		close(sub)
	}
	e.subscribers = nil
}
