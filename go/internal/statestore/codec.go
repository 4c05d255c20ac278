package statestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mcdev12/focustimer/go/internal/models"
)

// maxStoredSeconds bounds decoded integers so oversized values cannot
// overflow int arithmetic downstream.
const maxStoredSeconds = math.MaxInt32

// rawState mirrors models.TimerState with optional, loosely typed fields so
// missing values can be told apart from zero values.
type rawState struct {
	RemainingSeconds *float64 `json:"remainingSeconds"`
	IsRunning        *bool    `json:"isRunning"`
	LastUpdated      *float64 `json:"lastUpdated"`
	ActiveMinutes    *float64 `json:"activeMinutes"`
	Status           *string  `json:"status"`
}

// Encode serializes state. Negative remaining seconds are clamped to 0 and
// the status of a running state is left out.
func Encode(state models.TimerState) ([]byte, error) {
	if state.RemainingSeconds < 0 {
		state.RemainingSeconds = 0
	}
	if state.IsRunning {
		state.Status = ""
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal timer state: %w", err)
	}
	return data, nil
}

// Decode parses a stored value. It reports false when the value is not a
// JSON object or a field has the wrong type. Missing remaining seconds
// decode as 0, fractions are floored and negatives clamped to 0. A missing
// or non-positive lastUpdated or activeMinutes decodes as 0. A status is
// kept only for a stopped state and only when it names a stopped status.
func Decode(data []byte) (models.TimerState, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !strings.HasPrefix(string(trimmed), "{") {
		return models.TimerState{}, false
	}

	var raw rawState
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return models.TimerState{}, false
	}

	state := models.TimerState{
		RemainingSeconds: int(clampFloat(raw.RemainingSeconds, maxStoredSeconds)),
		ActiveMinutes:    int(clampFloat(raw.ActiveMinutes, maxStoredSeconds)),
		LastUpdated:      int64(clampFloat(raw.LastUpdated, math.MaxInt64/2)),
	}
	if raw.IsRunning != nil {
		state.IsRunning = *raw.IsRunning
	}
	if raw.Status != nil && !state.IsRunning {
		state.Status = stoppedStatus(*raw.Status)
	}
	return state, true
}

func stoppedStatus(s string) models.TimerStatus {
	switch status := models.TimerStatus(s); status {
	case models.TimerStatusIdle, models.TimerStatusPaused, models.TimerStatusExpired:
		return status
	default:
		return ""
	}
}

func clampFloat(v *float64, upper float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	if *v > upper {
		return upper
	}
	return math.Floor(*v)
}
