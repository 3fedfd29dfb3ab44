package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/snapshot/pkg/snapshot"
)

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List stored snapshots with size and age",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Snapshot.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		return listSnapshots(cmd.OutOrStdout(), snapshot.NewStore(snapshot.DefaultFileMode), dir, time.Now())
	},
}

func listSnapshots(w io.Writer, store *snapshot.Store, dir string, now time.Time) error {
	names, err := store.List(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No snapshots in %s\n", dir)
		return nil
	}

	fmt.Fprintf(w, "Snapshots in %s (%d):\n\n", dir, len(names))
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}

	var total uint64
	for _, name := range names {
		info, err := os.Stat(store.Resolve(dir, name))
		if err != nil {
			fmt.Fprintf(w, "  %-*s  (%v)\n", width, name, err)
			continue
		}
		size := uint64(info.Size())
		total += size
		fmt.Fprintf(w, "  %-*s  %8s  %s\n", width, name, humanize.Bytes(size), humanize.RelTime(info.ModTime(), now, "ago", "from now"))
	}
	fmt.Fprintf(w, "\nTotal: %s\n", humanize.Bytes(total))
	return nil
}
