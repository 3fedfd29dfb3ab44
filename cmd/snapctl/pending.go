package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/snapshot/internal/clipboard"
	"github.com/justchokingaround/snapshot/internal/database"
	"github.com/justchokingaround/snapshot/internal/ledger"
	"github.com/justchokingaround/snapshot/pkg/snapshot"
)

var (
	pendingCopy bool
	pendingDir  string
	pendingKind string
	ackAll      bool
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show created or updated snapshots awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pendingKind != "" {
			if _, err := snapshot.ParseKind(pendingKind); err != nil {
				return err
			}
		}

		svc, closeFn, err := openLedger(&cfg.Database)
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := svc.Pending(cmd.Context(), ledger.Filter{Dir: pendingDir, Kind: pendingKind})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printPending(out, entries, time.Now())
		if !pendingCopy || len(entries) == 0 {
			return nil
		}

		report, err := reportFromEntries(entries)
		if err != nil {
			return err
		}
		if err := clipboard.NewService(logger, cfg.Clipboard.Command).Write(cmd.Context(), report.String()); err != nil {
			return fmt.Errorf("failed to copy report: %w", err)
		}
		fmt.Fprintln(out, "\nReport copied to clipboard.")
		return nil
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack [dir/name...]",
	Short: "Mark pending snapshots as reviewed",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ackAll == (len(args) > 0) {
			return errors.New("pass snapshot paths or --all, not both")
		}

		svc, closeFn, err := openLedger(&cfg.Database)
		if err != nil {
			return err
		}
		defer closeFn()

		out := cmd.OutOrStdout()
		if ackAll {
			n, err := svc.AckAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Acknowledged %d snapshot(s).\n", n)
			return nil
		}

		entries, err := svc.Pending(cmd.Context(), ledger.Filter{})
		if err != nil {
			return err
		}
		targets, err := resolveAckTargets(entries, args)
		if err != nil {
			return err
		}
		for _, e := range targets {
			if err := svc.Ack(cmd.Context(), e.Dir, e.Name); err != nil {
				return err
			}
			fmt.Fprintf(out, "Acknowledged %s\n", filepath.Join(e.Dir, e.Name))
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().BoolVarP(&pendingCopy, "copy", "c", false, "copy the pending report to the clipboard")
	pendingCmd.Flags().StringVar(&pendingDir, "dir", "", "only show snapshots in this directory")
	pendingCmd.Flags().StringVar(&pendingKind, "kind", "", "only show created or updated snapshots")
	ackCmd.Flags().BoolVar(&ackAll, "all", false, "acknowledge every pending snapshot")
}

func printPending(w io.Writer, entries []database.DriftEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No snapshots pending review.")
		return
	}
	fmt.Fprintf(w, "Pending review (%d):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %-7s  %s  (%s, session %s)\n",
			e.Kind, filepath.Join(e.Dir, e.Name), humanize.RelTime(e.RecordedAt, now, "ago", "from now"), shortID(e.SessionID))
	}
}

// reportFromEntries rebuilds the end-of-session report format from
// ledger entries
func reportFromEntries(entries []database.DriftEntry) (*snapshot.Report, error) {
	session := snapshot.NewSession()
	for _, e := range entries {
		kind, err := snapshot.ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", filepath.Join(e.Dir, e.Name), err)
		}
		session.Record(e.Dir, e.Name, kind)
	}
	return session.Finalize(), nil
}

// resolveAckTargets matches each path argument to a pending entry. Paths
// are made absolute the same way the ledger stores directories, and the
// entry's directory and name are joined since names may contain slashes.
func resolveAckTargets(entries []database.DriftEntry, paths []string) ([]database.DriftEntry, error) {
	byPath := make(map[string]database.DriftEntry, len(entries))
	for _, e := range entries {
		byPath[filepath.Join(e.Dir, e.Name)] = e
	}

	targets := make([]database.DriftEntry, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		e, ok := byPath[abs]
		if !ok {
			return nil, fmt.Errorf("%s: %w", p, ledger.ErrNotPending)
		}
		targets = append(targets, e)
	}
	return targets, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
