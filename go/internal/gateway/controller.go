package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

// Controller is the timer the gateway drives. *timer.Engine implements it.
type Controller interface {
	Start()
	Pause()
	Toggle()
	Reset()
	SelectMode(minutes int)
	Snapshot() timer.Snapshot
	Modes() []models.Mode
	Subscribe(buffer int) <-chan timer.Event
	Unsubscribe(ch <-chan timer.Event)
}

var _ Controller = (*timer.Engine)(nil)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidMinutes = errors.New("minutes must be a positive integer")
)

// Dispatch applies a client command to the timer.
func Dispatch(c Controller, msg ClientMessage) error {
	switch strings.ToLower(msg.Action) {
	case "start", "resume":
		c.Start()
	case "pause", "stop":
		c.Pause()
	case "toggle":
		c.Toggle()
	case "reset":
		c.Reset()
	case "mode":
		if msg.Minutes <= 0 {
			return ErrInvalidMinutes
		}
		c.SelectMode(msg.Minutes)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
	return nil
}

// ModeInfo describes a selectable mode and whether it is the active one.
type ModeInfo struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
	Active  bool   `json:"active"`
}

// ModeInfos lists the controller's modes, marking the active one.
func ModeInfos(c Controller) []ModeInfo {
	active := c.Snapshot().ActiveMinutes
	modes := c.Modes()
	infos := make([]ModeInfo, 0, len(modes))
	for _, m := range modes {
		infos = append(infos, ModeInfo{Name: m.Name, Minutes: m.Minutes, Active: m.Minutes == active})
	}
	return infos
}
