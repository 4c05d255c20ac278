package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

// TimerEvent is the message pushed to WebSocket clients.
type TimerEvent struct {
	ID        string          `json:"id"`        // Event UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Timer snapshot
}

// EventType represents the type of a pushed message
type EventType string

const (
	EventTypeSnapshot    EventType = "snapshot"
	EventTypeStateChange EventType = EventType(timer.EventStateChange)
	EventTypeTick        EventType = EventType(timer.EventTick)
	EventTypeSync        EventType = EventType(timer.EventSync)
	EventTypeError       EventType = "error"
)

// NewTimerEvent wraps a snapshot in a pushed message.
func NewTimerEvent(typ EventType, snap timer.Snapshot) (*TimerEvent, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal timer snapshot: %w", err)
	}
	return &TimerEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: snap.At,
		Data:      data,
	}, nil
}

func newErrorEvent(message string) *TimerEvent {
	data, _ := json.Marshal(map[string]string{"message": message})
	return &TimerEvent{
		ID:        uuid.NewString(),
		Type:      EventTypeError,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ClientMessage is a command sent by a WebSocket client, for example
// {"action":"toggle"} or {"action":"mode","minutes":5}.
type ClientMessage struct {
	Action  string `json:"action"`
	Minutes int    `json:"minutes,omitempty"`
}
