package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/snapshot/internal/ledger"
	"github.com/justchokingaround/snapshot/pkg/snapshot"
)

type checkOptions struct {
	dir       string
	actualDir string
	update    bool
	bytes     bool
}

var checkOpts checkOptions

// checkResult is the outcome of checking one name
type checkResult struct {
	Name    string
	Outcome snapshot.Outcome
	Err     error
}

var checkCmd = &cobra.Command{
	Use:   "check [names...]",
	Short: "Compare generated files against snapshots",
	Long: `Compare each <actual>/<name> against <dir>/<name>.

With no names, every file under --actual is checked. With a single name
and no --actual, the value is read from stdin. With --update, missing or
different snapshots are written, listed at the end, and the command still
exits with status 1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := snapshot.NewSession()
		session.Init()

		snap, err := newSnapshotter(cfg, checkOpts.dir, checkOpts.update, session)
		if err != nil {
			return err
		}

		results, err := runCheck(snap, checkOpts, args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := printResults(out, results, newPalette(!noColor && cfg.Logging.Color))

		report := session.Finalize()
		if report != nil {
			fmt.Fprintf(out, "\n%v\n", report.Err())
			if err := ledger.NewReportSink(&cfg.Database).RecordReport(cmd.Context(), report); err != nil {
				logger.Error("failed to record drift in ledger", "error", err)
			}
		}

		if failed > 0 || report != nil {
			logger.Debug("check finished with failures", "failed", failed, "checked", len(results))
			return errFailed
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkOpts.dir, "dir", "d", "", "snapshot directory (default: snapshot.dir from config)")
	checkCmd.Flags().StringVarP(&checkOpts.actualDir, "actual", "a", "", "directory holding the generated files")
	checkCmd.Flags().BoolVarP(&checkOpts.update, "update", "u", false, "create or update snapshots instead of failing")
	checkCmd.Flags().BoolVar(&checkOpts.bytes, "bytes", false, "compare byte for byte instead of as text")
}

// runCheck checks every requested name and collects the results. Failing
// checks are results, not errors; the error is for unusable arguments.
func runCheck(snap *snapshot.Snapshotter, opts checkOptions, names []string, stdin io.Reader) ([]checkResult, error) {
	if opts.actualDir == "" {
		if len(names) != 1 {
			return nil, errors.New("reading from stdin needs exactly one snapshot name; use --actual for more")
		}
		actual, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []checkResult{checkOne(snap, opts, names[0], actual)}, nil
	}

	if len(names) == 0 {
		var err error
		names, err = snap.Store().List(opts.actualDir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", opts.actualDir, err)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no files found in %s", opts.actualDir)
		}
	}

	results := make([]checkResult, 0, len(names))
	for _, name := range names {
		actual, err := os.ReadFile(filepath.Join(opts.actualDir, filepath.FromSlash(name)))
		if err != nil {
			results = append(results, checkResult{Name: name, Err: &snapshot.IOError{Op: "read", Path: filepath.Join(opts.actualDir, name), Err: err}})
			continue
		}
		results = append(results, checkOne(snap, opts, name, actual))
	}
	return results, nil
}

func checkOne(snap *snapshot.Snapshotter, opts checkOptions, name string, actual []byte) checkResult {
	var matchOpts []snapshot.MatchOption
	if opts.bytes {
		matchOpts = append(matchOpts, snapshot.AsBytes())
	}
	outcome, err := snap.Check(actual, name, matchOpts...)
	return checkResult{Name: name, Outcome: outcome, Err: err}
}

// palette holds the styles used to print check results
type palette struct {
	ok, warn, fail, added, removed, header lipgloss.Style
}

func newPalette(color bool) palette {
	if !color {
		plain := lipgloss.NewStyle()
		return palette{plain, plain, plain, plain, plain, plain}
	}
	return palette{
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		added:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		removed: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// printResults writes one line per result, with diffs under mismatches,
// and returns how many results failed
func printResults(w io.Writer, results []checkResult, p palette) int {
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			style := p.ok
			if r.Outcome != snapshot.Matched {
				style = p.warn
			}
			fmt.Fprintf(w, "%s %s\n", style.Render(fmt.Sprintf("%-7s", r.Outcome)), r.Name)
			continue
		}

		failed++
		fmt.Fprintf(w, "%s %s\n", p.fail.Render(fmt.Sprintf("%-7s", "FAIL")), r.Name)

		var mismatch *snapshot.MismatchError
		if errors.As(r.Err, &mismatch) {
			fmt.Fprintf(w, "Snapshot '%s' in '%s' does not match:\n", mismatch.Name, mismatch.Dir)
			fmt.Fprint(w, renderDiff(mismatch.Diff.Unified, p))
			continue
		}
		fmt.Fprintln(w, indent(r.Err.Error()))
	}
	return failed
}

// renderDiff colors a unified diff line by line
func renderDiff(unified string, p palette) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(unified, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"), strings.HasPrefix(text, "@@"):
			text = p.header.Render(text)
		case strings.HasPrefix(text, "+"):
			text = p.added.Render(text)
		case strings.HasPrefix(text, "-"):
			text = p.removed.Render(text)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
