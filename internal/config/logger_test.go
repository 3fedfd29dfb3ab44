package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer

	logger, err := NewLogger(&LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("wrote snapshot", "path", "a.txt")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "wrote snapshot", rec["msg"])
	assert.Equal(t, "a.txt", rec["path"])
}

func TestNewLogger_SetLevel(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer

	logger, err := NewLogger(&LoggingConfig{Level: "error", Format: "text"}, &buf)
	require.NoError(t, err)
	logger.Info("first")
	assert.Empty(t, buf.String())

	SetLevel("info")
	logger.Info("second")
	assert.Contains(t, buf.String(), "second")
}

func TestNewLogger_File(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	path := filepath.Join(t.TempDir(), "logs", "snapshot.log")

	logger, err := NewLogger(&LoggingConfig{Level: "info", File: path, MaxSize: 1}, &bytes.Buffer{})
	require.NoError(t, err)
	logger.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestColoredTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewColoredTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(h).With("session", "abc").WithGroup("snap")

	logger.Debug("hidden")
	logger.Warn("drift", "name", "a.txt")

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "msg=drift")
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "snap.name=a.txt")
	assert.NotContains(t, out, "hidden")
}
