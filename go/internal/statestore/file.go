package statestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// FileConfig configures the file backend.
type FileConfig struct {
	Dir          string        `yaml:"dir"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultFileConfig returns the file backend defaults.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Dir:          defaultStateDir(),
		PollInterval: 500 * time.Millisecond,
	}
}

// FileBackend keeps the slot in a JSON file. Other contexts are detected by
// polling: a change is any content different from what this handle last
// wrote or observed.
type FileBackend struct {
	fs       afero.Fs
	clock    clockwork.Clock
	path     string
	interval time.Duration

	mu       sync.Mutex
	lastSeen []byte

	closed    chan struct{}
	closeOnce sync.Once
}

// NewFileBackend creates the state directory if needed.
func NewFileBackend(fs afero.Fs, clock clockwork.Clock, key string, cfg FileConfig) (*FileBackend, error) {
	if cfg.Dir == "" {
		cfg.Dir = defaultStateDir()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultFileConfig().PollInterval
	}
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &FileBackend{
		fs:       fs,
		clock:    clock,
		path:     filepath.Join(cfg.Dir, sanitizeKey(key)+".json"),
		interval: cfg.PollInterval,
		closed:   make(chan struct{}),
	}, nil
}

// Path returns the file holding the slot.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return data, nil
}

func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	if b.isClosed() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	b.lastSeen = append([]byte(nil), data...)
	return nil
}

func (b *FileBackend) Subscribe(ctx context.Context, onChange func()) error {
	if b.isClosed() {
		return ErrClosed
	}

	// Start from the current content so only later writes count as changes.
	if current, err := afero.ReadFile(b.fs, b.path); err == nil {
		b.mu.Lock()
		if b.lastSeen == nil {
			b.lastSeen = current
		}
		b.mu.Unlock()
	}

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
				if b.poll() {
					onChange()
				}
			}
		}
	}()
	return nil
}

// poll reports whether the file changed since this handle last saw it.
func (b *FileBackend) poll() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", b.path).Msg("state file poll failed")
		}
		return false
	}
	if bytes.Equal(data, b.lastSeen) {
		return false
	}
	b.lastSeen = data
	return true
}

func (b *FileBackend) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

func (b *FileBackend) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// sanitizeKey maps a storage key onto the character set accepted by file
// names and NATS KV keys.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "focustimer")
	}
	return filepath.Join(os.TempDir(), "focustimer")
}
