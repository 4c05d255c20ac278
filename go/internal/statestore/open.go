package statestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Supported backend drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNATS     = "nats"
)

// DefaultKey is the storage key shared by all contexts unless configured.
const DefaultKey = "pomodoro:state"

// Config selects and configures a backend.
type Config struct {
	Driver   string         `yaml:"driver"`
	Key      string         `yaml:"key"`
	File     FileConfig     `yaml:"file"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	NATS     NATSConfig     `yaml:"nats"`
}

// DefaultConfig returns a file-backed configuration under the user config dir.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverFile,
		Key:      DefaultKey,
		File:     DefaultFileConfig(),
		SQLite:   DefaultSQLiteConfig(),
		Postgres: DefaultPostgresConfig(),
		NATS:     DefaultNATSConfig(),
	}
}

type openOptions struct {
	clock  clockwork.Clock
	fs     afero.Fs
	origin *MemoryOrigin
}

// OpenOption customizes Open.
type OpenOption func(*openOptions)

// WithClock sets the clock used by polling backends.
func WithClock(clock clockwork.Clock) OpenOption {
	return func(o *openOptions) { o.clock = clock }
}

// WithFs sets the filesystem used by the file backend.
func WithFs(fs afero.Fs) OpenOption {
	return func(o *openOptions) { o.fs = fs }
}

// WithMemoryOrigin sets the origin used by the memory backend. Without it
// every memory slot gets a private origin.
func WithMemoryOrigin(origin *MemoryOrigin) OpenOption {
	return func(o *openOptions) { o.origin = origin }
}

// Open builds the backend named by cfg.Driver and wraps it in a Slot.
func Open(ctx context.Context, cfg Config, opts ...OpenOption) (*Slot, error) {
	options := openOptions{
		clock: clockwork.NewRealClock(),
		fs:    afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}

	backend, err := openBackend(ctx, cfg, options)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("driver", strings.ToLower(cfg.Driver)).
		Str("key", cfg.Key).
		Msg("timer state store opened")

	return NewSlot(cfg.Key, backend), nil
}

func openBackend(ctx context.Context, cfg Config, options openOptions) (Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverMemory:
		origin := options.origin
		if origin == nil {
			origin = NewMemoryOrigin()
		}
		return origin.Context(cfg.Key), nil
	case DriverFile, "":
		return NewFileBackend(options.fs, options.clock, cfg.Key, cfg.File)
	case DriverSQLite:
		return NewSQLiteBackend(ctx, options.clock, cfg.Key, cfg.SQLite)
	case DriverPostgres:
		return NewPostgresBackend(ctx, cfg.Key, cfg.Postgres)
	case DriverNATS:
		return NewNATSBackend(ctx, cfg.Key, cfg.NATS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
