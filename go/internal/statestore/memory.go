package statestore

import (
	"context"
	"sync"
)

// MemoryOrigin is an in-process origin: a set of keyed slots shared by any
// number of MemoryBackend contexts.
type MemoryOrigin struct {
	mu     sync.Mutex
	values map[string][]byte
	subs   map[*memorySubscriber]struct{}
}

type memorySubscriber struct {
	owner *MemoryBackend
	key   string
	wake  chan struct{}
}

// NewMemoryOrigin creates an empty origin.
func NewMemoryOrigin() *MemoryOrigin {
	return &MemoryOrigin{
		values: make(map[string][]byte),
		subs:   make(map[*memorySubscriber]struct{}),
	}
}

// Context returns a new backend handle for key. Each handle is a separate
// context: its own writes are not reported to its own subscribers.
func (o *MemoryOrigin) Context(key string) *MemoryBackend {
	return &MemoryBackend{
		origin: o,
		key:    key,
		closed: make(chan struct{}),
	}
}

func (o *MemoryOrigin) load(key string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.values[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

func (o *MemoryOrigin) save(writer *MemoryBackend, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[writer.key] = append([]byte(nil), data...)
	for sub := range o.subs {
		if sub.key != writer.key || sub.owner == writer {
			continue
		}
		// Pending wake-ups coalesce; the subscriber re-reads the latest value.
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

func (o *MemoryOrigin) register(sub *memorySubscriber) {
	o.mu.Lock()
	o.subs[sub] = struct{}{}
	o.mu.Unlock()
}

func (o *MemoryOrigin) unregister(sub *memorySubscriber) {
	o.mu.Lock()
	delete(o.subs, sub)
	o.mu.Unlock()
}

// MemoryBackend is one context's handle on a MemoryOrigin slot.
type MemoryBackend struct {
	origin    *MemoryOrigin
	key       string
	closed    chan struct{}
	closeOnce sync.Once
}

func (b *MemoryBackend) Load(ctx context.Context) ([]byte, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}
	data, ok := b.origin.load(b.key)
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (b *MemoryBackend) Save(ctx context.Context, data []byte) error {
	if b.isClosed() {
		return ErrClosed
	}
	b.origin.save(b, data)
	return nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, onChange func()) error {
	if b.isClosed() {
		return ErrClosed
	}
	sub := &memorySubscriber{owner: b, key: b.key, wake: make(chan struct{}, 1)}
	b.origin.register(sub)

	go func() {
		defer b.origin.unregister(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case <-sub.wake:
				onChange()
			}
		}
	}()
	return nil
}

func (b *MemoryBackend) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

func (b *MemoryBackend) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
