// Package snapshot implements golden-file assertions for tests.
//
// A Snapshotter compares a computed value with the content of a named
// file under a snapshot directory. When the file is missing or differs,
// the assertion fails, unless update mode is on, in which case the file is
// written and the write is recorded on a Session. At the end of the run the
// Session produces a Report so that the run can be failed even though each
// individual assertion passed: golden-file drift never goes unnoticed.
//
// Typical use from a test package:
//
//	var suite = snapshot.NewSuite()
//
//	func TestMain(m *testing.M) { os.Exit(suite.Run(m)) }
//
//	func TestRender(t *testing.T) {
//		suite.T(t).AssertMatch(render(), "render.txt")
//	}
//
// Run `go test -args -snapshot-update` (or set SNAPSHOT_UPDATE=1) to create
// or refresh snapshots.
package snapshot

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Outcome is the successful result of a single snapshot check.
type Outcome int

const (
	Matched Outcome = iota
	CreatedSnapshot
	UpdatedSnapshot
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case CreatedSnapshot:
		return "created"
	case UpdatedSnapshot:
		return "updated"
	default:
		return "unknown"
	}
}

// Snapshotter is the per-call assertion engine. It holds no per-call
// state; the same value may be shared by parallel tests.
type Snapshotter struct {
	store       *Store
	dir         string
	mode        Mode
	diffContext int
	suggestions int
	update      func() bool
	recorder    Recorder
	logger      *slog.Logger
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithDir sets the default snapshot directory.
func WithDir(dir string) Option {
	return func(s *Snapshotter) { s.dir = dir }
}

// WithUpdate fixes update mode on or off.
func WithUpdate(update bool) Option {
	return func(s *Snapshotter) { s.update = func() bool { return update } }
}

// WithUpdateFunc reads update mode on every call, so a command-line flag
// parsed after construction is honored.
func WithUpdateFunc(fn func() bool) Option {
	return func(s *Snapshotter) { s.update = fn }
}

// WithRecorder sets where created and updated snapshots are reported.
func WithRecorder(r Recorder) Option {
	return func(s *Snapshotter) { s.recorder = r }
}

// WithStore replaces the filesystem store.
func WithStore(st *Store) Option {
	return func(s *Snapshotter) { s.store = st }
}

// WithMode sets the default comparison mode.
func WithMode(m Mode) Option {
	return func(s *Snapshotter) { s.mode = m }
}

// WithDiffContext sets the number of context lines in unified diffs.
func WithDiffContext(n int) Option {
	return func(s *Snapshotter) { s.diffContext = n }
}

// WithSuggestions sets how many similar names a missing-snapshot error
// proposes. Zero disables suggestions.
func WithSuggestions(n int) Option {
	return func(s *Snapshotter) { s.suggestions = n }
}

// WithLogger sets the logger used for write events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Snapshotter) { s.logger = l }
}

// New creates a Snapshotter. Without options it reads from and writes to
// "snapshots" in the working directory, compares text, never updates and
// records nothing.
func New(opts ...Option) *Snapshotter {
	s := &Snapshotter{
		store:       NewStore(DefaultFileMode),
		dir:         "snapshots",
		mode:        ModeText,
		diffContext: DefaultDiffContext,
		suggestions: 3,
		update:      func() bool { return false },
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// WithDir returns a copy of s whose default directory is dir.
func (s *Snapshotter) WithDir(dir string) *Snapshotter {
	c := *s
	c.dir = dir
	return &c
}

// Store returns the store used for reading and writing snapshots.
func (s *Snapshotter) Store() *Store { return s.store }

// Dir returns the default snapshot directory.
func (s *Snapshotter) Dir() string { return s.dir }

// UpdateMode reports whether update mode is currently on.
func (s *Snapshotter) UpdateMode() bool { return s.update() }

type matchConfig struct {
	dir  string
	mode Mode
}

// MatchOption overrides Snapshotter defaults for a single call.
type MatchOption func(*matchConfig)

// InDir checks the snapshot in dir instead of the default directory.
func InDir(dir string) MatchOption {
	return func(c *matchConfig) { c.dir = dir }
}

// AsBytes compares raw bytes for this call.
func AsBytes() MatchOption {
	return func(c *matchConfig) { c.mode = ModeBytes }
}

// Match checks actual text against the snapshot name.
func (s *Snapshotter) Match(actual, name string, opts ...MatchOption) error {
	_, err := s.Check([]byte(actual), name, opts...)
	return err
}

// MatchBytes checks actual against the snapshot name byte for byte.
func (s *Snapshotter) MatchBytes(actual []byte, name string, opts ...MatchOption) error {
	_, err := s.Check(actual, name, append(opts, AsBytes())...)
	return err
}

// Check runs one snapshot assertion and reports what happened.
//
// A path occupied by a directory fails before update mode is consulted.
// A missing or different snapshot fails unless update mode is on, in which
// case it is written, recorded, and the call succeeds.
func (s *Snapshotter) Check(actual []byte, name string, opts ...MatchOption) (Outcome, error) {
	cfg := matchConfig{dir: s.dir, mode: s.mode}
	for _, o := range opts {
		o(&cfg)
	}

	path := s.store.Resolve(cfg.dir, name)
	state, err := s.store.Classify(path)
	if err != nil {
		return Matched, err
	}

	switch state {
	case Conflict:
		return Matched, &ConflictError{Path: path}

	case Missing:
		if !s.update() {
			return Matched, &MissingError{Name: name, Dir: cfg.dir, Suggestions: s.suggest(cfg.dir, name)}
		}
		if err := s.write(path, actual); err != nil {
			return Matched, err
		}
		s.record(cfg.dir, name, Created)
		return CreatedSnapshot, nil
	}

	stored, err := s.store.Read(path)
	if err != nil {
		return Matched, err
	}

	cmp := Comparator{Mode: cfg.mode, Context: s.diffContext}
	equal, err := cmp.Equal(actual, stored)
	if err != nil {
		return Matched, &IOError{Op: "decode", Path: path, Err: err}
	}
	if equal {
		return Matched, nil
	}

	if !s.update() {
		return Matched, &MismatchError{
			Name:     name,
			Dir:      cfg.dir,
			Path:     path,
			Expected: string(stored),
			Actual:   string(actual),
			Diff:     cmp.Diff(stored, actual, path, "actual"),
		}
	}
	if err := s.write(path, actual); err != nil {
		return Matched, err
	}
	s.record(cfg.dir, name, Updated)
	return UpdatedSnapshot, nil
}

func (s *Snapshotter) write(path string, content []byte) error {
	if err := s.store.Write(path, content); err != nil {
		s.logger.Error("failed to write snapshot", "path", path, "error", err)
		return err
	}
	s.logger.Debug("wrote snapshot", "path", path, "size", humanize.Bytes(uint64(len(content))))
	return nil
}

func (s *Snapshotter) record(dir, name string, kind Kind) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(dir, name, kind)
}

func (s *Snapshotter) suggest(dir, name string) []string {
	if s.suggestions <= 0 {
		return nil
	}
	names, err := s.store.List(dir)
	if err != nil {
		s.logger.Debug("could not list snapshot directory", "dir", dir, "error", err)
		return nil
	}
	return suggest(name, names, s.suggestions)
}
