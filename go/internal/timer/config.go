package timer

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focustimer/go/internal/models"
)

// Config holds the engine settings.
type Config struct {
	Modes          []models.Mode `yaml:"modes"`
	DefaultMinutes int           `yaml:"default_minutes"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	// StoreTimeout bounds every store read and write. It is configured
	// with the store settings.
	StoreTimeout time.Duration `yaml:"-"`
}

// DefaultConfig returns the standard Focus/Short Break/Long Break setup.
func DefaultConfig() Config {
	return Config{
		Modes:          models.DefaultModes(),
		DefaultMinutes: models.DefaultModeMinutes,
		TickInterval:   time.Second,
		StoreTimeout:   2 * time.Second,
	}
}

// normalize fills unset fields and makes sure the default duration is one of
// the modes.
func (c Config) normalize() Config {
	defaults := DefaultConfig()

	modes := make([]models.Mode, 0, len(c.Modes))
	for _, m := range c.Modes {
		if m.Minutes > 0 {
			modes = append(modes, m)
		}
	}
	if len(modes) == 0 {
		modes = defaults.Modes
	}
	c.Modes = modes

	if !hasMode(c.Modes, c.DefaultMinutes) {
		if hasMode(c.Modes, models.DefaultModeMinutes) {
			c.DefaultMinutes = models.DefaultModeMinutes
		} else {
			c.DefaultMinutes = c.Modes[0].Minutes
		}
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaults.StoreTimeout
	}
	return c
}

func hasMode(modes []models.Mode, minutes int) bool {
	for _, m := range modes {
		if m.Minutes == minutes {
			return true
		}
	}
	return false
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the real clock, typically with a clockwork.FakeClock.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithName labels the engine in logs.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}
