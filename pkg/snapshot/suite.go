package snapshot

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/justchokingaround/snapshot/internal/config"
)

// Runner runs a test binary's tests. *testing.M satisfies it.
type Runner interface {
	Run() int
}

// ReportSink receives the report of every session that wrote snapshots,
// e.g. to queue them for review.
type ReportSink interface {
	RecordReport(ctx context.Context, report *Report) error
}

// Suite owns the Session of one test binary. It registers the update flag,
// brackets the run with Session.Init and Session.Finalize, and turns any
// drift into a failing exit code.
type Suite struct {
	flag    *flag.Flag
	cfgFile string
	stderr  io.Writer
	logger  *slog.Logger
	extra   []Option
	sink    ReportSink
	session *Session

	once sync.Once
	cfg  *config.Config
	snap *Snapshotter
}

// SuiteOption configures a Suite.
type SuiteOption func(*suiteOptions)

type suiteOptions struct {
	flags   *flag.FlagSet
	cfgFile string
	stderr  io.Writer
	logger  *slog.Logger
	extra   []Option
	sink    ReportSink
}

// WithFlagSet registers the update flag on fs instead of flag.CommandLine.
func WithFlagSet(fs *flag.FlagSet) SuiteOption {
	return func(o *suiteOptions) { o.flags = fs }
}

// WithConfigFile reads configuration from path instead of the search path.
func WithConfigFile(path string) SuiteOption {
	return func(o *suiteOptions) { o.cfgFile = path }
}

// WithOutput sets where the end-of-session report is printed.
func WithOutput(w io.Writer) SuiteOption {
	return func(o *suiteOptions) { o.stderr = w }
}

// WithSuiteLogger sets the logger used by the suite and its Snapshotter.
func WithSuiteLogger(l *slog.Logger) SuiteOption {
	return func(o *suiteOptions) { o.logger = l }
}

// WithSnapshotOptions applies opts to the suite's Snapshotter after the
// configured defaults.
func WithSnapshotOptions(opts ...Option) SuiteOption {
	return func(o *suiteOptions) { o.extra = append(o.extra, opts...) }
}

// WithReportSink passes each drift report to sink after the run.
func WithReportSink(sink ReportSink) SuiteOption {
	return func(o *suiteOptions) { o.sink = sink }
}

// NewSuite creates a suite and registers -snapshot-update. Registering
// twice on the same flag set reuses the existing flag.
func NewSuite(opts ...SuiteOption) *Suite {
	o := suiteOptions{flags: flag.CommandLine, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	f := o.flags.Lookup(UpdateFlag)
	if f == nil {
		o.flags.Bool(UpdateFlag, false, "Update snapshots.")
		f = o.flags.Lookup(UpdateFlag)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Suite{
		flag:    f,
		cfgFile: o.cfgFile,
		stderr:  o.stderr,
		logger:  logger,
		extra:   o.extra,
		sink:    o.sink,
		session: NewSession(),
	}
}

// Session returns the suite's session.
func (s *Suite) Session() *Session { return s.session }

// UpdateMode reports whether the update flag or configuration is on.
func (s *Suite) UpdateMode() bool {
	if on, err := strconv.ParseBool(s.flag.Value.String()); err == nil && on {
		return true
	}
	return s.config().Snapshot.Update
}

func (s *Suite) config() *config.Config {
	s.load()
	return s.cfg
}

func (s *Suite) load() {
	s.once.Do(func() {
		cfg, _, err := config.Load(s.cfgFile)
		if err != nil {
			s.logger.Warn("failed to load snapshot config, using defaults", "error", err)
			cfg = config.DefaultConfig()
		}
		s.cfg = cfg

		mode, err := ParseMode(cfg.Snapshot.Mode)
		if err != nil {
			s.logger.Warn("invalid snapshot mode, comparing text", "error", err)
		}

		opts := []Option{
			WithDir(cfg.Snapshot.Dir),
			WithMode(mode),
			WithDiffContext(cfg.Snapshot.DiffContext),
			WithSuggestions(cfg.Snapshot.Suggestions),
			WithStore(NewStore(fs.FileMode(cfg.Snapshot.FileMode))),
			WithUpdateFunc(s.UpdateMode),
			WithRecorder(s.session),
			WithLogger(s.logger),
		}
		s.snap = New(append(opts, s.extra...)...)
	})
}

// Snapshotter returns the engine bound to this suite's session.
func (s *Suite) Snapshotter() *Snapshotter {
	s.load()
	return s.snap
}

// T returns an assertion helper for one test. Its snapshots live in
// <dir>/<test name>, where dir comes from configuration.
func (s *Suite) T(tb TB) *T {
	snap := s.Snapshotter()
	return NewT(tb, snap.WithDir(snap.Store().Resolve(snap.Dir(), tb.Name())))
}

// Run initializes the session, runs the tests and finalizes the session.
// When any snapshot was created or updated, the report is printed and a
// successful exit code is turned into 1.
func (s *Suite) Run(m Runner) int {
	s.session.Init()
	code := m.Run()

	report := s.session.Finalize()
	if report == nil {
		return code
	}

	created, updated := report.Counts()
	s.logger.Info("snapshot drift detected", "session", report.SessionID, "created", created, "updated", updated,
		"elapsed", time.Since(s.session.Started()).Round(time.Millisecond))
	fmt.Fprintf(s.stderr, "\n%v\n", report.Err())

	if s.sink != nil {
		if err := s.sink.RecordReport(context.Background(), report); err != nil {
			s.logger.Error("failed to record drift report", "error", err)
		}
	}

	if code == 0 {
		code = 1
	}
	return code
}
