package statestore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestNATSBackend connects to FOCUSTIMER_TEST_NATS_URL and skips the test
// when it is unset.
func newTestNATSBackend(t *testing.T, key string) *NATSBackend {
	t.Helper()
	url := os.Getenv("FOCUSTIMER_TEST_NATS_URL")
	if url == "" {
		t.Skip("FOCUSTIMER_TEST_NATS_URL not set")
	}
	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.Bucket = "FOCUS_TIMER_TEST"
	b, err := NewNATSBackend(context.Background(), key, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestNATSBackend_IsOwnRevision(t *testing.T) {
	b := &NATSBackend{ownRevs: map[uint64]struct{}{3: {}, 5: {}}}

	assert.True(t, b.isOwnRevision(3))
	assert.False(t, b.isOwnRevision(3), "revisions are consumed once")
	assert.False(t, b.isOwnRevision(7))
	assert.Empty(t, b.ownRevs, "older own revisions are pruned")
}

func TestNATSBackend_RoundTripAndWatch(t *testing.T) {
	key := "test:" + uuid.NewString()
	writer := NewSlot(key, newTestNATSBackend(t, key))
	reader := NewSlot(key, newTestNATSBackend(t, key))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerSeen := make(chan models.TimerState, 4)
	readerSeen := make(chan models.TimerState, 4)
	writer.Subscribe(ctx, func(s models.TimerState) { writerSeen <- s })
	reader.Subscribe(ctx, func(s models.TimerState) { readerSeen <- s })

	state := models.TimerState{RemainingSeconds: 1500, LastUpdated: 99, ActiveMinutes: 25}
	writer.Write(ctx, state)

	assert.Equal(t, state, receiveState(t, readerSeen))
	requireNoState(t, writerSeen)

	got, ok := reader.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, state, got)
}
