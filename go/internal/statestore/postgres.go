package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN                  string        `yaml:"dsn"`
	Channel              string        `yaml:"channel"` // channel name to LISTEN/NOTIFY on
	PingInterval         time.Duration `yaml:"ping_interval"`
	MinReconnectInterval time.Duration `yaml:"min_reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
}

// DefaultPostgresConfig returns the postgres backend defaults. DSN is left
// empty and normally comes from dbconfig.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Channel:              "timer_slot_changes",
		PingInterval:         90 * time.Second,
		MinReconnectInterval: 10 * time.Second,
		MaxReconnectInterval: time.Minute,
	}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS timer_slots (
    slot_key TEXT PRIMARY KEY,
    value JSONB NOT NULL,
    writer_id UUID NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// slotNotification is the NOTIFY payload sent with every write.
type slotNotification struct {
	Key    string    `json:"key"`
	Writer uuid.UUID `json:"writer"`
}

// PostgresBackend keeps the slot in a postgres row. Every write is followed
// by a NOTIFY in the same transaction; a pq.Listener delivers the
// notifications of other writers.
type PostgresBackend struct {
	pool     *pgxpool.Pool
	cfg      PostgresConfig
	key      string
	writerID uuid.UUID

	mu        sync.Mutex
	listeners []*pq.Listener

	closed    chan struct{}
	closeOnce sync.Once
}

// NewPostgresBackend connects to cfg.DSN and ensures the schema.
func NewPostgresBackend(ctx context.Context, key string, cfg PostgresConfig) (*PostgresBackend, error) {
	defaults := DefaultPostgresConfig()
	if cfg.Channel == "" {
		cfg.Channel = defaults.Channel
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.MinReconnectInterval <= 0 {
		cfg.MinReconnectInterval = defaults.MinReconnectInterval
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = defaults.MaxReconnectInterval
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresBackend{
		pool:     pool,
		cfg:      cfg,
		key:      key,
		writerID: uuid.New(),
		closed:   make(chan struct{}),
	}, nil
}

// WriterID identifies this context in NOTIFY payloads.
func (b *PostgresBackend) WriterID() uuid.UUID {
	return b.writerID
}

func (b *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	var data []byte
	err := b.pool.QueryRow(ctx, "SELECT value FROM timer_slots WHERE slot_key = $1", b.key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch timer slot: %w", err)
	}
	return data, nil
}

func (b *PostgresBackend) Save(ctx context.Context, data []byte) error {
	if b.isClosed() {
		return ErrClosed
	}

	payload, err := json.Marshal(slotNotification{Key: b.key, Writer: b.writerID})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO timer_slots (slot_key, value, writer_id, updated_at)
            VALUES ($1, $2, $3, now())
            ON CONFLICT (slot_key) DO UPDATE
            SET value = EXCLUDED.value, writer_id = EXCLUDED.writer_id, updated_at = EXCLUDED.updated_at
        `, b.key, string(data), b.writerID); err != nil {
			return fmt.Errorf("upsert timer slot: %w", err)
		}
		// Delivered to listeners on commit.
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", b.cfg.Channel, string(payload)); err != nil {
			return fmt.Errorf("notify timer slot change: %w", err)
		}
		return nil
	})
	return err
}

func (b *PostgresBackend) Subscribe(ctx context.Context, onChange func()) error {
	if b.isClosed() {
		return ErrClosed
	}

	l := pq.NewListener(
		b.cfg.DSN,
		b.cfg.MinReconnectInterval,
		b.cfg.MaxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(b.cfg.Channel); err != nil {
		l.Close()
		return fmt.Errorf("failed to listen to channel: %w", err)
	}

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	log.Info().
		Str("channel", b.cfg.Channel).
		Str("key", b.key).
		Msg("listening for timer slot notifications")

	go b.listen(ctx, l, onChange)
	return nil
}

func (b *PostgresBackend) listen(ctx context.Context, l *pq.Listener, onChange func()) {
	pingTicker := time.NewTicker(b.cfg.PingInterval)
	defer pingTicker.Stop()
	defer b.dropListener(l)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.closed:
			return
		case note := <-l.Notify:
			if note == nil {
				// nil notification means the connection was re-established;
				// writes may have been missed, so re-read.
				onChange()
				continue
			}
			if b.isForeign(note.Extra) {
				onChange()
			}
		case <-pingTicker.C:
			if err := l.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// isForeign reports whether a NOTIFY payload describes another writer's
// change to this backend's key.
func (b *PostgresBackend) isForeign(extra string) bool {
	var note slotNotification
	if err := json.Unmarshal([]byte(extra), &note); err != nil {
		log.Error().Err(err).Msg("invalid timer slot notification")
		return false
	}
	return note.Key == b.key && note.Writer != b.writerID
}

func (b *PostgresBackend) dropListener(l *pq.Listener) {
	b.mu.Lock()
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	// Close already shut every listener down.
	if b.isClosed() {
		return
	}
	if err := l.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close listener")
	}
}

func (b *PostgresBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.mu.Lock()
		listeners := append([]*pq.Listener(nil), b.listeners...)
		b.mu.Unlock()
		for _, l := range listeners {
			if err := l.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close listener")
			}
		}
		if b.pool != nil {
			b.pool.Close()
		}
	})
	return nil
}

func (b *PostgresBackend) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
