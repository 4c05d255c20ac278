package statestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultSQLiteConfig returns the sqlite backend defaults.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:         "focustimer.db",
		PollInterval: 500 * time.Millisecond,
	}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS timer_slots (
    slot_key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);`

// SQLiteBackend keeps the slot in a sqlite table. Each backend owns a single
// connection, so PRAGMA data_version only moves when another connection
// (another context) commits.
type SQLiteBackend struct {
	db       *sql.DB
	clock    clockwork.Clock
	key      string
	interval time.Duration

	mu          sync.Mutex
	dataVersion int64
	lastSeen    []byte

	closed    chan struct{}
	closeOnce sync.Once
}

// NewSQLiteBackend opens the database at cfg.Path and ensures the schema.
func NewSQLiteBackend(ctx context.Context, clock clockwork.Clock, key string, cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultSQLiteConfig().Path
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultSQLiteConfig().PollInterval
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteBackend{
		db:       db,
		clock:    clock,
		key:      key,
		interval: cfg.PollInterval,
		closed:   make(chan struct{}),
	}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context) ([]byte, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	return b.load(ctx)
}

func (b *SQLiteBackend) load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT value FROM timer_slots WHERE slot_key = ?", b.key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get timer slot: %w", err)
	}
	return data, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, data []byte) error {
	if b.isClosed() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `
        INSERT INTO timer_slots (slot_key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (slot_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		b.key, data, b.clock.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save timer slot: %w", err)
	}
	b.lastSeen = append([]byte(nil), data...)
	return nil
}

func (b *SQLiteBackend) Subscribe(ctx context.Context, onChange func()) error {
	if b.isClosed() {
		return ErrClosed
	}

	b.mu.Lock()
	version, err := b.readDataVersion(ctx)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.dataVersion = version
	if b.lastSeen == nil {
		if current, err := b.load(ctx); err == nil {
			b.lastSeen = current
		}
	}
	b.mu.Unlock()

	ticker := b.clock.NewTicker(b.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case <-ticker.Chan():
				changed, err := b.poll(ctx)
				if err != nil {
					log.Debug().Err(err).Str("key", b.key).Msg("sqlite slot poll failed")
					continue
				}
				if changed {
					onChange()
				}
			}
		}
	}()
	return nil
}

// poll reports whether another connection changed this key since the last
// poll. Commits touching other keys move data_version but leave the value
// unchanged, so they are filtered out by content.
func (b *SQLiteBackend) poll(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	version, err := b.readDataVersion(ctx)
	if err != nil {
		return false, err
	}
	if version == b.dataVersion {
		return false, nil
	}
	b.dataVersion = version

	data, err := b.load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if bytes.Equal(data, b.lastSeen) {
		return false, nil
	}
	b.lastSeen = data
	return true, nil
}

func (b *SQLiteBackend) readDataVersion(ctx context.Context) (int64, error) {
	var version int64
	if err := b.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return version, nil
}

func (b *SQLiteBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		err = b.db.Close()
	})
	return err
}

func (b *SQLiteBackend) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
