package timer

import "fmt"

// Display is the render output for a UI: zero padded minutes and seconds
// plus the running flag that drives the toggle label.
type Display struct {
	MinutesText string `json:"minutesText"`
	SecondsText string `json:"secondsText"`
	IsRunning   bool   `json:"isRunning"`
}

// NewDisplay projects remaining seconds onto a Display. Negative input is
// shown as zero.
func NewDisplay(remainingSeconds int, running bool) Display {
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	return Display{
		MinutesText: fmt.Sprintf("%02d", remainingSeconds/60),
		SecondsText: fmt.Sprintf("%02d", remainingSeconds%60),
		IsRunning:   running,
	}
}

// String renders the display as mm:ss.
func (d Display) String() string {
	return d.MinutesText + ":" + d.SecondsText
}

// FormatClock renders remaining seconds as mm:ss.
func FormatClock(remainingSeconds int) string {
	return NewDisplay(remainingSeconds, false).String()
}
