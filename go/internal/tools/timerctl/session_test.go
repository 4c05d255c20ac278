package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/focustimer/go/internal/statestore"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

// captureLogs redirects the global logger into a buffer for one test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

type failingCloseBackend struct {
	*statestore.MemoryBackend
}

func (failingCloseBackend) Close() error {
	return errors.New("disk gone")
}

func TestLocalSession_CloseLogsStoreFailure(t *testing.T) {
	logs := captureLogs(t)
	origin := statestore.NewMemoryOrigin()
	slot := statestore.NewSlot(statestore.DefaultKey, failingCloseBackend{origin.Context(statestore.DefaultKey)})
	engine := timer.New(slot, timer.DefaultConfig(), timer.WithClock(clockwork.NewFakeClock()))
	engine.Attach(context.Background())

	s := &localSession{slot: slot, engine: engine}
	s.Close()

	assert.Contains(t, logs.String(), "failed to close state store")
	assert.Contains(t, logs.String(), "disk gone")
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is quiet", func(t *testing.T) {
		logs := captureLogs(t)
		loadEnvFile(filepath.Join(t.TempDir(), ".env"))
		assert.Empty(t, logs.String())
	})

	t.Run("unreadable file warns", func(t *testing.T) {
		logs := captureLogs(t)
		loadEnvFile(t.TempDir())
		assert.Contains(t, logs.String(), "could not load .env file")
	})

	t.Run("values are loaded", func(t *testing.T) {
		logs := captureLogs(t)
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("FOCUSTIMER_TEST_DOTENV=loaded\n"), 0o600))
		t.Setenv("FOCUSTIMER_TEST_DOTENV", "")
		os.Unsetenv("FOCUSTIMER_TEST_DOTENV")

		loadEnvFile(path)

		assert.Equal(t, "loaded", os.Getenv("FOCUSTIMER_TEST_DOTENV"))
		assert.Empty(t, logs.String())
	})
}
