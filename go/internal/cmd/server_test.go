package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/focustimer/go/internal/config"
	"github.com/mcdev12/focustimer/go/internal/gateway"
	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServices(t *testing.T, origin *statestore.MemoryOrigin) *Services {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = statestore.DriverMemory

	services, err := setupServices(context.Background(), cfg, statestore.WithMemoryOrigin(origin))
	require.NoError(t, err)
	t.Cleanup(services.Close)
	return services
}

func TestSetupServer_Routes(t *testing.T) {
	services := newTestServices(t, statestore.NewMemoryOrigin())
	cfg := config.Default().Server
	cfg.AllowedOrigins = []string{"https://focus.example"}

	server := httptest.NewServer(setupServer(cfg, services).Handler)
	defer server.Close()

	res, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "OK", string(body))

	res, err = http.Get(server.URL + "/info")
	require.NoError(t, err)
	var stats gateway.Stats
	require.NoError(t, json.NewDecoder(res.Body).Decode(&stats))
	res.Body.Close()
	assert.Equal(t, "timer_gateway", stats.Service)
	assert.Equal(t, string(models.TimerStatusIdle), stats.TimerStatus)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/timer/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://focus.example")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "https://focus.example", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestSetupServices_SharesSlotWithOtherContexts(t *testing.T) {
	origin := statestore.NewMemoryOrigin()
	services := newTestServices(t, origin)

	services.Timer.SelectMode(5)

	other := statestore.NewSlot(statestore.DefaultKey, origin.Context(statestore.DefaultKey))
	state, ok := other.Read(context.Background())
	require.True(t, ok)
	assert.Equal(t, models.TimerState{
		RemainingSeconds: 300,
		IsRunning:        false,
		LastUpdated:      state.LastUpdated,
		ActiveMinutes:    5,
		Status:           models.TimerStatusIdle,
	}, state)
}
