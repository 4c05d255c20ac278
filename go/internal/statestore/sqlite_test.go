package statestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteBackend(t *testing.T, path, key string, clock clockwork.Clock) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(context.Background(), clock, key, SQLiteConfig{Path: path, PollInterval: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLiteBackend_LoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timer.db")
	b := newTestSQLiteBackend(t, path, DefaultKey, clockwork.NewFakeClock())

	_, err := b.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteBackend_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timer.db")
	b := newTestSQLiteBackend(t, path, DefaultKey, clockwork.NewFakeClock())

	require.NoError(t, b.Save(ctx, []byte(`{"remainingSeconds":10}`)))
	require.NoError(t, b.Save(ctx, []byte(`{"remainingSeconds":9}`)))

	data, err := b.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"remainingSeconds":9}`, string(data))
}

func TestSQLiteBackend_PollDetectsOtherConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timer.db")
	clock := clockwork.NewFakeClock()
	a := newTestSQLiteBackend(t, path, DefaultKey, clock)
	b := newTestSQLiteBackend(t, path, DefaultKey, clock)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, a.Subscribe(subCtx, func() {}))
	require.NoError(t, b.Subscribe(subCtx, func() {}))

	require.NoError(t, a.Save(ctx, []byte(`{"remainingSeconds":10}`)))

	changed, err := a.poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "writer must not see its own change")

	changed, err = b.poll(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = b.poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "a change is reported once")
}

func TestSQLiteBackend_PollIgnoresOtherKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timer.db")
	clock := clockwork.NewFakeClock()
	timer := newTestSQLiteBackend(t, path, DefaultKey, clock)
	todo := newTestSQLiteBackend(t, path, "todo:items", clock)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, timer.Subscribe(subCtx, func() {}))

	require.NoError(t, todo.Save(ctx, []byte(`[]`)))

	changed, err := timer.poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSQLiteBackend_SubscribeDeliversForeignWrites(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	path := filepath.Join(t.TempDir(), "timer.db")
	clock := clockwork.NewFakeClock()
	writer := NewSlot(DefaultKey, newTestSQLiteBackend(t, path, DefaultKey, clock))
	reader := NewSlot(DefaultKey, newTestSQLiteBackend(t, path, DefaultKey, clock))

	seen := make(chan models.TimerState, 4)
	reader.Subscribe(ctx, func(s models.TimerState) { seen <- s })
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	state := models.TimerState{RemainingSeconds: 300, LastUpdated: 2000, ActiveMinutes: 5}
	writer.Write(ctx, state)

	clock.Advance(time.Second)
	assert.Equal(t, state, receiveState(t, seen))
}
