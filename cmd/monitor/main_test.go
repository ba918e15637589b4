package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ConfigErrorReturnsExitCode(t *testing.T) {
	t.Setenv("QWEATHER_KEY", "")
	assert.Equal(t, 1, run(true))
}

func TestRun_OnceReportsFlushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":"200","now":{"obsTime":"2025-12-02T10:35+08:00","temp":"-3","feelsLike":"-8","text":"晴","windDir":"南风","windScale":"2","humidity":"30"}}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	t.Setenv("QWEATHER_KEY", "test-key")
	t.Setenv("QWEATHER_URL", srv.URL)
	t.Setenv("MONITOR_CITIES", "101010100:北京")
	t.Setenv("NOTIFY_CHANNEL", "log")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("HISTORY_ROOT", filepath.Join(dir, "history"))
	t.Setenv("LATEST_FILE", filepath.Join(dir, "latest-briefings.json"))
	// The status file cannot be created under a regular file.
	t.Setenv("STATUS_FILE", filepath.Join(blocker, "weather-status.json"))

	assert.Equal(t, 1, run(true))

	// The archive was still written before the failing flush.
	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
