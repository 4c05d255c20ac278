package models

// TimerStatus defines the lifecycle state of a countdown.
type TimerStatus string

const (
	TimerStatusIdle    TimerStatus = "IDLE"
	TimerStatusRunning TimerStatus = "RUNNING"
	TimerStatusPaused  TimerStatus = "PAUSED"
	TimerStatusExpired TimerStatus = "EXPIRED"
)

// TimerState is the persisted shape of a countdown. Field names match the
// JSON written by every context sharing a slot.
type TimerState struct {
	RemainingSeconds int   `json:"remainingSeconds"`
	IsRunning        bool  `json:"isRunning"`
	LastUpdated      int64 `json:"lastUpdated"` // ms since epoch
	ActiveMinutes    int   `json:"activeMinutes"`

	// Status is the writer's status for a stopped countdown. It is empty for
	// running states and for values written without it.
	Status TimerStatus `json:"status,omitempty"`
}

// Mode is a named countdown duration selectable by the UI.
type Mode struct {
	Name    string `json:"name" yaml:"name"`
	Minutes int    `json:"minutes" yaml:"minutes"`
}

// DefaultModes is the mode set used when none is configured.
func DefaultModes() []Mode {
	return []Mode{
		{Name: "Focus", Minutes: 25},
		{Name: "Short Break", Minutes: 5},
		{Name: "Long Break", Minutes: 15},
	}
}

// DefaultModeMinutes is the fallback duration for missing or invalid modes.
const DefaultModeMinutes = 25
