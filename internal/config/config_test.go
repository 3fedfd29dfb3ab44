package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join("testdata", "snapshots"), cfg.Snapshot.Dir)
	assert.False(t, cfg.Snapshot.Update)
	assert.Equal(t, "text", cfg.Snapshot.Mode)
	assert.Equal(t, 3, cfg.Snapshot.DiffContext)
	assert.Equal(t, uint32(0o644), cfg.Snapshot.FileMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "ledger.db", filepath.Base(cfg.Database.Path))
}

func TestLoad_File(t *testing.T) {
	t.Setenv("SNAPSHOT_UPDATE", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`snapshot:
  dir: golden
  update: true
  mode: bytes
logging:
  level: debug
`), 0o644))

	cfg, v, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "golden", cfg.Snapshot.Dir)
	assert.True(t, cfg.Snapshot.Update)
	assert.Equal(t, "bytes", cfg.Snapshot.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset keys keep their defaults
	assert.Equal(t, 3, cfg.Snapshot.Suggestions)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SNAPSHOT_UPDATE", "1")
	t.Setenv("SNAPSHOT_DIR", "from-env")
	t.Setenv("SNAPSHOT_LOG_LEVEL", "warn")
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Snapshot.Update)
	assert.Equal(t, "from-env", cfg.Snapshot.Dir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_SearchPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SNAPSHOT_DIR", "")
	require.NoError(t, os.WriteFile(".snapshot.yaml", []byte("snapshot:\n  dir: local\n"), 0o644))

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Snapshot.Dir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveDefaultConfig(t *testing.T) {
	t.Setenv("SNAPSHOT_UPDATE", "")
	t.Setenv("SNAPSHOT_DIR", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveDefaultConfig(path))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Snapshot, cfg.Snapshot)
	assert.Equal(t, DefaultConfig().Logging, cfg.Logging)
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "snapshot"), GetConfigDir())

	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	assert.Equal(t, "/tmp/state", GetStateDir())
}
