package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	logger, closer, err := New(dir, slog.LevelInfo, now)
	require.NoError(t, err)

	logger.Info("File moved to done", "publishId", "p1")
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "2026-03-04.log"))
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, `msg="File moved to done"`)
	assert.Contains(t, out, "publishId=p1")
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNewAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, msg := range []string{"first", "second"} {
		logger, closer, err := New(dir, slog.LevelInfo, now)
		require.NoError(t, err)
		logger.Info(msg)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "2026-03-04.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestNewWithoutDir(t *testing.T) {
	logger, closer, err := New("", slog.LevelInfo, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}
