package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/mcdev12/focustimer/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestEngine attaches an engine to a fresh in-memory slot. The fake clock
// is never advanced, so a started timer holds its remaining time.
func newTestEngine(t *testing.T) *timer.Engine {
	t.Helper()
	origin := statestore.NewMemoryOrigin()
	slot := statestore.NewSlot(statestore.DefaultKey, origin.Context(statestore.DefaultKey))
	engine := timer.New(slot, timer.DefaultConfig(), timer.WithClock(clockwork.NewFakeClockAt(testEpoch)))
	engine.Attach(context.Background())
	t.Cleanup(engine.Close)
	return engine
}

func TestDispatch(t *testing.T) {
	engine := newTestEngine(t)

	require.NoError(t, Dispatch(engine, ClientMessage{Action: "START"}))
	assert.Equal(t, models.TimerStatusRunning, engine.Snapshot().Status)

	require.NoError(t, Dispatch(engine, ClientMessage{Action: "stop"}))
	assert.Equal(t, models.TimerStatusPaused, engine.Snapshot().Status)

	require.NoError(t, Dispatch(engine, ClientMessage{Action: "toggle"}))
	assert.Equal(t, models.TimerStatusRunning, engine.Snapshot().Status)

	require.NoError(t, Dispatch(engine, ClientMessage{Action: "mode", Minutes: 5}))
	snap := engine.Snapshot()
	assert.Equal(t, models.TimerStatusIdle, snap.Status)
	assert.Equal(t, 300, snap.RemainingSeconds)

	require.NoError(t, Dispatch(engine, ClientMessage{Action: "reset"}))
	assert.Equal(t, 5, engine.Snapshot().ActiveMinutes)

	assert.ErrorIs(t, Dispatch(engine, ClientMessage{Action: "mode"}), ErrInvalidMinutes)
	assert.ErrorIs(t, Dispatch(engine, ClientMessage{Action: "mode", Minutes: -3}), ErrInvalidMinutes)
	assert.ErrorIs(t, Dispatch(engine, ClientMessage{Action: "skip"}), ErrUnknownAction)
}

func TestModeInfosMarksActiveMode(t *testing.T) {
	engine := newTestEngine(t)
	engine.SelectMode(15)

	infos := ModeInfos(engine)
	require.Len(t, infos, 3)
	for _, info := range infos {
		assert.Equal(t, info.Minutes == 15, info.Active, info.Name)
	}
}
