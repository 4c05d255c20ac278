package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_PauseInOneContextConverges(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	inspector(origin).Write(context.Background(), models.TimerState{
		RemainingSeconds: 300, IsRunning: true, LastUpdated: testEpoch.UnixMilli(), ActiveMinutes: 25,
	})

	a := attachTestContext(t, origin, clock, "a")
	b := attachTestContext(t, origin, clock, "b")
	require.Equal(t, models.TimerStatusRunning, b.engine.Snapshot().Status)
	bWrites := b.store.writeCount()

	a.engine.Pause()

	ev := waitEvent(t, b.events, ofType(EventSync))
	assert.Equal(t, models.TimerStatusPaused, ev.Snapshot.Status)
	assert.Equal(t, "05:00", ev.Snapshot.Display.String())
	assert.False(t, ev.Snapshot.Display.IsRunning)
	assert.Equal(t, bWrites, b.store.writeCount(), "reconciliation writes nothing back")

	clock.Advance(2 * time.Second)
	assertNoEvent(t, filterTicks(t, b.events))
	assert.Equal(t, 300, b.engine.Snapshot().RemainingSeconds)
}

func TestReconcile_PauseAtFullDurationConverges(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	a := attachTestContext(t, origin, clock, "a")
	b := attachTestContext(t, origin, clock, "b")

	a.engine.Start()
	waitEvent(t, b.events, func(ev Event) bool {
		return ev.Type == EventSync && ev.Snapshot.Status == models.TimerStatusRunning
	})
	a.engine.Pause()

	ev := waitEvent(t, b.events, func(ev Event) bool {
		return ev.Type == EventSync && !ev.Snapshot.IsRunning()
	})
	assert.Equal(t, models.TimerStatusPaused, a.engine.Snapshot().Status)
	assert.Equal(t, a.engine.Snapshot().Status, ev.Snapshot.Status)
	assert.Equal(t, "25:00", ev.Snapshot.Display.String())
	assert.Equal(t, models.TimerStatusPaused, storedState(t, origin).Status)

	// A context opened afterwards agrees too.
	c := attachTestContext(t, origin, clock, "c")
	assert.Equal(t, models.TimerStatusPaused, c.engine.Snapshot().Status)
}

func TestReconcile_StoppedStateWithoutStatusIsPaused(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	b := attachTestContext(t, origin, clock, "b")

	b.engine.reconcile(models.TimerState{RemainingSeconds: 1500, LastUpdated: testEpoch.UnixMilli(), ActiveMinutes: 25})
	assert.Equal(t, models.TimerStatusPaused, b.engine.Snapshot().Status)

	b.engine.reconcile(models.TimerState{RemainingSeconds: 1500, LastUpdated: testEpoch.UnixMilli(), ActiveMinutes: 25, Status: models.TimerStatusIdle})
	assert.Equal(t, models.TimerStatusIdle, b.engine.Snapshot().Status)

	b.engine.reconcile(models.TimerState{RemainingSeconds: 0, LastUpdated: testEpoch.UnixMilli(), ActiveMinutes: 25})
	assert.Equal(t, models.TimerStatusExpired, b.engine.Snapshot().Status)
}

func TestReconcile_ConvergesRegardlessOfPriorState(t *testing.T) {
	priors := map[string]func(*Engine){
		"idle":    func(e *Engine) {},
		"running": func(e *Engine) { e.Start() },
		"paused":  func(e *Engine) { e.Start(); e.Pause() },
		"other mode": func(e *Engine) {
			e.SelectMode(15)
		},
	}

	for name, prepare := range priors {
		t.Run(name, func(t *testing.T) {
			origin := statestore.NewMemoryOrigin()
			clock := clockwork.NewFakeClockAt(testEpoch)
			b := newTestContext(t, origin, clock, "b")
			prepare(b.engine)
			b.engine.Attach(context.Background())

			drain(b.events)

			b.engine.reconcile(models.TimerState{
				RemainingSeconds: 300, IsRunning: false, LastUpdated: clock.Now().UnixMilli(), ActiveMinutes: 25,
			})

			snap := b.engine.Snapshot()
			assert.Equal(t, models.TimerStatusPaused, snap.Status)
			assert.Equal(t, "05:00", snap.Display.String())
			assert.Equal(t, 25, snap.ActiveMinutes)
		})
	}
}

func TestReconcile_RunningStateIsDriftCorrected(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	b := attachTestContext(t, origin, clock, "b")
	writes := b.store.writeCount()

	b.engine.reconcile(models.TimerState{
		RemainingSeconds: 600, IsRunning: true, LastUpdated: testEpoch.Add(-20 * time.Second).UnixMilli(), ActiveMinutes: 15,
	})

	snap := b.engine.Snapshot()
	assert.Equal(t, models.TimerStatusRunning, snap.Status)
	assert.Equal(t, 580, snap.RemainingSeconds)
	assert.Equal(t, 15, snap.ActiveMinutes)
	assert.Equal(t, writes, b.store.writeCount())

	clock.Advance(time.Second)
	ev := waitEvent(t, b.events, ofType(EventTick))
	assert.Equal(t, 579, ev.Snapshot.RemainingSeconds)
}

func TestReconcile_OverdueRunningStateShowsExpiredWithoutWriting(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	b := attachTestContext(t, origin, clock, "b")
	b.engine.Start()
	writes := b.store.writeCount()

	b.engine.reconcile(models.TimerState{
		RemainingSeconds: 5, IsRunning: true, LastUpdated: testEpoch.Add(-time.Minute).UnixMilli(), ActiveMinutes: 5,
	})

	snap := b.engine.Snapshot()
	assert.Equal(t, models.TimerStatusExpired, snap.Status)
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.Equal(t, 5, snap.ActiveMinutes)
	assert.Equal(t, writes, b.store.writeCount())

	drain(b.events)
	clock.Advance(time.Second)
	assertNoEvent(t, filterTicks(t, b.events))
}

func TestReconcile_UnknownModeFallsBackToDefault(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	b := attachTestContext(t, origin, clock, "b")
	b.engine.SelectMode(5)

	b.engine.reconcile(models.TimerState{RemainingSeconds: 100, ActiveMinutes: 0})

	assert.Equal(t, 25, b.engine.Snapshot().ActiveMinutes)
	assert.Equal(t, models.TimerStatusPaused, b.engine.Snapshot().Status)
}

func TestReconcile_StartInOneContextRunsInTheOther(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	a := attachTestContext(t, origin, clock, "a")
	b := attachTestContext(t, origin, clock, "b")

	a.engine.SelectMode(5)
	ev := waitEvent(t, b.events, func(ev Event) bool {
		return ev.Type == EventSync && ev.Snapshot.ActiveMinutes == 5
	})
	assert.Equal(t, models.TimerStatusIdle, ev.Snapshot.Status)

	a.engine.Start()
	ev = waitEvent(t, b.events, func(ev Event) bool {
		return ev.Type == EventSync && ev.Snapshot.Status == models.TimerStatusRunning
	})
	assert.Equal(t, 300, ev.Snapshot.RemainingSeconds)
	assert.True(t, ev.Snapshot.Display.IsRunning)

	a.engine.Reset()
	ev = waitEvent(t, b.events, func(ev Event) bool {
		return ev.Type == EventSync && ev.Snapshot.Status == models.TimerStatusIdle
	})
	assert.Equal(t, "05:00", ev.Snapshot.Display.String())
}

func TestReconcile_ClosedEngineIgnoresNotifications(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	clock := clockwork.NewFakeClockAt(testEpoch)
	b := attachTestContext(t, origin, clock, "b")
	b.engine.Close()

	b.engine.reconcile(models.TimerState{RemainingSeconds: 10, IsRunning: true, LastUpdated: testEpoch.UnixMilli(), ActiveMinutes: 25})

	assert.Equal(t, models.TimerStatusIdle, b.engine.Snapshot().Status)
	assert.Equal(t, 1500, b.engine.Snapshot().RemainingSeconds)
}
