package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete snapshot configuration
type Config struct {
	Snapshot  SnapshotConfig  `mapstructure:"snapshot" yaml:"snapshot"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Clipboard ClipboardConfig `mapstructure:"clipboard" yaml:"clipboard"`
}

// SnapshotConfig controls how snapshots are located and compared
type SnapshotConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Update      bool   `mapstructure:"update" yaml:"update"`
	Mode        string `mapstructure:"mode" yaml:"mode"` // text or bytes
	DiffContext int    `mapstructure:"diff_context" yaml:"diff_context"`
	Suggestions int    `mapstructure:"suggestions" yaml:"suggestions"`
	FileMode    uint32 `mapstructure:"file_mode" yaml:"file_mode"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // text or json
	File       string `mapstructure:"file" yaml:"file"`     // empty logs to stderr
	Color      bool   `mapstructure:"color" yaml:"color"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig controls the drift ledger database
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Path           string `mapstructure:"path" yaml:"path"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode" yaml:"wal_mode"`
}

// ClipboardConfig controls `snapctl pending --copy`
type ClipboardConfig struct {
	// Command is used when the clipboard library fails, e.g. "wl-copy"
	Command string `mapstructure:"command" yaml:"command"`
}

// envBindings maps config keys to their short environment variable names
var envBindings = map[string]string{
	"snapshot.update":  "SNAPSHOT_UPDATE",
	"snapshot.dir":     "SNAPSHOT_DIR",
	"snapshot.mode":    "SNAPSHOT_MODE",
	"logging.level":    "SNAPSHOT_LOG_LEVEL",
	"database.enabled": "SNAPSHOT_LEDGER",
	"database.path":    "SNAPSHOT_LEDGER_PATH",
}

// SetDefaults registers all default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("snapshot.dir", filepath.Join("testdata", "snapshots"))
	v.SetDefault("snapshot.update", false)
	v.SetDefault("snapshot.mode", "text")
	v.SetDefault("snapshot.diff_context", 3)
	v.SetDefault("snapshot.suggestions", 3)
	v.SetDefault("snapshot.file_mode", 0o644)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", filepath.Join(GetStateDir(), "snapshot", "ledger.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)

	v.SetDefault("clipboard.command", "")
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		// Defaults are static; this only fails on a programming error
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads configuration from cfgFile, or from the default search path
// when cfgFile is empty, then applies environment overrides.
// A missing config file is not an error.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		// An explicit file must exist, unlike the search path
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".snapshot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(GetConfigDir())
	}

	v.SetEnvPrefix("SNAPSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "SNAPSHOT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, v, nil
}

// SaveDefaultConfig writes the default configuration as YAML to path
func SaveDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	header := []byte("# snapshot configuration\n# Environment overrides: SNAPSHOT_UPDATE, SNAPSHOT_DIR, SNAPSHOT_LOG_LEVEL, SNAPSHOT_LEDGER\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetConfigDir returns the directory holding the user config file
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "snapshot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "snapshot")
	}
	return filepath.Join(home, ".config", "snapshot")
}

// GetStateDir returns the base directory for state such as the ledger
func GetStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "state")
	}
	return filepath.Join(home, ".local", "state")
}
