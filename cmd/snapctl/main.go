package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justchokingaround/snapshot/internal/config"
	"github.com/justchokingaround/snapshot/internal/database"
	"github.com/justchokingaround/snapshot/internal/ledger"
	"github.com/justchokingaround/snapshot/pkg/snapshot"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile  string
	logLevel string
	noColor  bool

	// Global config and logger
	cfg    *config.Config
	vcfg   *viper.Viper
	logger *slog.Logger
)

// errFailed is returned after a command has already printed why it failed
var errFailed = errors.New("snapshot check failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "snapctl",
	Short: "Check, update and review golden-file snapshots",
	Long: `snapctl compares generated files against stored snapshots outside of
go test, and reviews snapshots that test runs created or updated.

A run that writes any snapshot exits with status 1, so drift is never
committed unnoticed. Review written snapshots with 'snapctl pending' and
clear them with 'snapctl ack'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config init command
		if cmd.Name() == "init" && cmd.Parent().Name() == "config" {
			return nil
		}

		var err error
		cfg, vcfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override log level if specified
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		// Override color setting if specified
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.snapshot.yaml or $XDG_CONFIG_HOME/snapshot/.snapshot.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(ackCmd)
	rootCmd.AddCommand(watchCmd)
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "snapctl version %s\n", version)
		fmt.Fprintf(out, "Commit: %s\n", commit)
		fmt.Fprintf(out, "Built: %s\n", date)
	},
}

// configCmd handles configuration operations
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = ".snapshot.yaml"
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s", configPath)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		if err := config.SaveDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to save default configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration generated at: %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		used := vcfg.ConfigFileUsed()
		if used == "" {
			used = "(none, using defaults)"
		}
		fmt.Fprintf(out, "Config file: %s\n", used)
		fmt.Fprintf(out, "Snapshot dir: %s\n", cfg.Snapshot.Dir)
		fmt.Fprintf(out, "Update: %t\n", cfg.Snapshot.Update)
		fmt.Fprintf(out, "Mode: %s\n", cfg.Snapshot.Mode)
		fmt.Fprintf(out, "Log level: %s\n", cfg.Logging.Level)
		fmt.Fprintf(out, "Ledger: %t (%s)\n", cfg.Database.Enabled, cfg.Database.Path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if used := vcfg.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), used)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigDir())
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// newSnapshotter builds an engine from configuration. dir and update
// override the configured values when set.
func newSnapshotter(c *config.Config, dir string, update bool, rec snapshot.Recorder) (*snapshot.Snapshotter, error) {
	mode, err := snapshot.ParseMode(c.Snapshot.Mode)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = c.Snapshot.Dir
	}
	return snapshot.New(
		snapshot.WithDir(dir),
		snapshot.WithMode(mode),
		snapshot.WithUpdate(update || c.Snapshot.Update),
		snapshot.WithDiffContext(c.Snapshot.DiffContext),
		snapshot.WithSuggestions(c.Snapshot.Suggestions),
		snapshot.WithStore(snapshot.NewStore(fs.FileMode(c.Snapshot.FileMode))),
		snapshot.WithRecorder(rec),
		snapshot.WithLogger(logger),
	), nil
}

// openLedger opens the drift ledger. The returned func closes it.
func openLedger(c *config.DatabaseConfig) (*ledger.Service, func(), error) {
	db, err := database.Open(c)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := database.Close(db); err != nil {
			slog.Warn("failed to close ledger database", "error", err)
		}
	}
	return ledger.NewService(db), closeFn, nil
}
