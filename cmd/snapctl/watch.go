package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/snapshot/internal/config"
	"github.com/justchokingaround/snapshot/pkg/snapshot"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Log snapshot files as they are created, changed or removed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Snapshot.Dir
		if len(args) == 1 {
			dir = args[0]
		}

		// Pick up log level changes while watching
		vcfg.OnConfigChange(func(e fsnotify.Event) {
			var reloaded config.Config
			if err := vcfg.Unmarshal(&reloaded); err != nil {
				logger.Error("failed to reload config", "error", err)
				return
			}
			config.SetLevel(reloaded.Logging.Level)
			logger.Info("config reloaded", "file", e.Name, "level", reloaded.Logging.Level)
		})
		if vcfg.ConfigFileUsed() != "" {
			vcfg.WatchConfig()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		logger.Info("watching snapshots", "dir", dir)
		return watchSnapshots(ctx, dir, func(ev snapshotEvent) {
			logger.Info("snapshot "+ev.Op, "name", ev.Name)
			fmt.Fprintf(out, "%-7s %s\n", ev.Op, ev.Name)
		})
	},
}

// snapshotEvent is a change to one snapshot file
type snapshotEvent struct {
	Op   string // created, changed or removed
	Name string // slash-separated, relative to the watched dir
}

// watchSnapshots reports changes under dir until ctx is done. Temporary
// files from atomic writes are hidden; a rename over an existing snapshot
// is reported as a change.
func watchSnapshots(ctx context.Context, dir string, emit func(snapshotEvent)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := addTree(watcher, dir); err != nil {
		return err
	}

	names, err := snapshot.NewStore(snapshot.DefaultFileMode).List(dir)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ev, ok := classifyEvent(watcher, dir, event, known)
			if ok {
				emit(ev)
			}
		}
	}
}

func classifyEvent(watcher *fsnotify.Watcher, dir string, event fsnotify.Event, known map[string]bool) (snapshotEvent, bool) {
	rel, err := filepath.Rel(dir, event.Name)
	if err != nil || strings.HasPrefix(filepath.Base(rel), ".tmp-") {
		return snapshotEvent{}, false
	}
	name := filepath.ToSlash(rel)

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return snapshotEvent{}, false
		}
		if info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return snapshotEvent{}, false
		}
		op := "created"
		if known[name] {
			op = "changed"
		}
		known[name] = true
		return snapshotEvent{Op: op, Name: name}, true

	case event.Has(fsnotify.Write):
		known[name] = true
		return snapshotEvent{Op: "changed", Name: name}, true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !known[name] {
			return snapshotEvent{}, false
		}
		delete(known, name)
		return snapshotEvent{Op: "removed", Name: name}, true
	}
	return snapshotEvent{}, false
}

// addTree watches root and every directory below it
func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
