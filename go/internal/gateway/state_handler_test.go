package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateMux(t *testing.T) (*http.ServeMux, *timer.Engine) {
	t.Helper()
	engine := newTestEngine(t)
	mux := http.NewServeMux()
	NewStateHandler(engine).RegisterStateRoutes(mux)
	return mux, engine
}

func serve(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) timer.Snapshot {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var snap timer.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func TestStateHandler_GetState(t *testing.T) {
	mux, _ := newStateMux(t)

	snap := decodeSnapshot(t, serve(mux, http.MethodGet, "/api/timer/state", ""))
	assert.Equal(t, models.TimerStatusIdle, snap.Status)
	assert.Equal(t, 1500, snap.RemainingSeconds)
	assert.Equal(t, timer.Display{MinutesText: "25", SecondsText: "00"}, snap.Display)
}

func TestStateHandler_Commands(t *testing.T) {
	mux, engine := newStateMux(t)

	snap := decodeSnapshot(t, serve(mux, http.MethodPost, "/api/timer/start", ""))
	assert.Equal(t, models.TimerStatusRunning, snap.Status)
	assert.True(t, snap.Display.IsRunning)

	snap = decodeSnapshot(t, serve(mux, http.MethodPost, "/api/timer/pause", ""))
	assert.Equal(t, models.TimerStatusPaused, snap.Status)

	snap = decodeSnapshot(t, serve(mux, http.MethodPost, "/api/timer/toggle", ""))
	assert.Equal(t, models.TimerStatusRunning, snap.Status)

	snap = decodeSnapshot(t, serve(mux, http.MethodPost, "/api/timer/reset", ""))
	assert.Equal(t, models.TimerStatusIdle, snap.Status)
	assert.Equal(t, 1500, snap.RemainingSeconds)

	assert.Equal(t, snap.Status, engine.Snapshot().Status)
}

func TestStateHandler_SelectMode(t *testing.T) {
	mux, _ := newStateMux(t)

	snap := decodeSnapshot(t, serve(mux, http.MethodPost, "/api/timer/mode", `{"minutes":5}`))
	assert.Equal(t, 5, snap.ActiveMinutes)
	assert.Equal(t, "05:00", snap.Display.String())

	// Positive but unknown durations fall back to the default mode.
	snap = decodeSnapshot(t, serve(mux, http.MethodPost, "/api/timer/mode", `{"minutes":7}`))
	assert.Equal(t, 25, snap.ActiveMinutes)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"minutes":`},
		{"wrong type", `{"minutes":"five"}`},
		{"zero", `{"minutes":0}`},
		{"negative", `{"minutes":-5}`},
		{"missing", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, http.MethodPost, "/api/timer/mode", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestStateHandler_Modes(t *testing.T) {
	mux, engine := newStateMux(t)
	engine.SelectMode(5)

	rec := serve(mux, http.MethodGet, "/api/timer/modes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res ModesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []ModeInfo{
		{Name: "Focus", Minutes: 25},
		{Name: "Short Break", Minutes: 5, Active: true},
		{Name: "Long Break", Minutes: 15},
	}, res.Modes)
}

func TestStateHandler_Routing(t *testing.T) {
	mux, _ := newStateMux(t)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(mux, http.MethodGet, "/api/timer/start", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(mux, http.MethodPost, "/api/timer/state", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodPost, "/api/timer/skip", "").Code)
}
