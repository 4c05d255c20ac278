package statestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig configures the JetStream KeyValue backend.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Bucket        string        `yaml:"bucket"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultNATSConfig returns the NATS backend defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Bucket:        "FOCUS_TIMER",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBackend keeps the slot in a JetStream KeyValue bucket and watches the
// key for updates. Revisions returned by this handle's own puts are skipped.
type NATSBackend struct {
	nc  *nats.Conn
	kv  jetstream.KeyValue
	key string

	mu      sync.Mutex
	ownRevs map[uint64]struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

// NewNATSBackend connects to cfg.URL and creates the bucket if needed.
func NewNATSBackend(ctx context.Context, key string, cfg NATSConfig) (*NATSBackend, error) {
	defaults := DefaultNATSConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaults.Bucket
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = defaults.ReconnectWait
	}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Focus timer state slots",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure key value bucket: %w", err)
	}

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("key", sanitizeKey(key)).
		Msg("using JetStream key value bucket")

	return &NATSBackend{
		nc:      nc,
		kv:      kv,
		key:     sanitizeKey(key),
		ownRevs: make(map[uint64]struct{}),
		closed:  make(chan struct{}),
	}, nil
}

func (b *NATSBackend) Load(ctx context.Context) ([]byte, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	entry, err := b.kv.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get key: %w", err)
	}
	return entry.Value(), nil
}

func (b *NATSBackend) Save(ctx context.Context, data []byte) error {
	if b.isClosed() {
		return ErrClosed
	}

	// Held across Put so the watcher cannot see our revision before it is
	// recorded.
	b.mu.Lock()
	defer b.mu.Unlock()

	rev, err := b.kv.Put(ctx, b.key, data)
	if err != nil {
		return fmt.Errorf("put key: %w", err)
	}
	b.ownRevs[rev] = struct{}{}
	return nil
}

func (b *NATSBackend) Subscribe(ctx context.Context, onChange func()) error {
	if b.isClosed() {
		return ErrClosed
	}

	watcher, err := b.kv.Watch(ctx, b.key, jetstream.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("watch key: %w", err)
	}

	go func() {
		defer func() {
			if err := watcher.Stop(); err != nil {
				log.Debug().Err(err).Msg("failed to stop key watcher")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				if b.isOwnRevision(entry.Revision()) {
					continue
				}
				onChange()
			}
		}
	}()
	return nil
}

func (b *NATSBackend) isOwnRevision(rev uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ownRevs[rev]; ok {
		delete(b.ownRevs, rev)
		return true
	}
	// Revisions only grow; anything older than a foreign update will never
	// be delivered again.
	for own := range b.ownRevs {
		if own < rev {
			delete(b.ownRevs, own)
		}
	}
	return false
}

func (b *NATSBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.nc.Close()
	})
	return nil
}

func (b *NATSBackend) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
