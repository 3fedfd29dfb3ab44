package snapshot

import (
	"errors"

	"github.com/stretchr/testify/require"
)

// TB is the part of testing.TB the assertion helper needs.
type TB interface {
	Helper()
	Name() string
	Errorf(format string, args ...any)
	FailNow()
	Logf(format string, args ...any)
}

// T binds a Snapshotter to one test and turns failures into test failures.
type T struct {
	tb   TB
	snap *Snapshotter
}

// NewT returns an assertion helper reporting to tb.
func NewT(tb TB, snap *Snapshotter) *T {
	return &T{tb: tb, snap: snap}
}

// InDir returns a helper for the same test that uses dir by default.
func (t *T) InDir(dir string) *T {
	return &T{tb: t.tb, snap: t.snap.WithDir(dir)}
}

// Dir returns the default snapshot directory of this helper.
func (t *T) Dir() string { return t.snap.Dir() }

// AssertMatch fails the test unless actual matches the snapshot name.
func (t *T) AssertMatch(actual, name string, opts ...MatchOption) {
	t.tb.Helper()
	outcome, err := t.snap.Check([]byte(actual), name, opts...)
	t.report(name, outcome, err)
}

// AssertMatchBytes is AssertMatch with exact byte comparison.
func (t *T) AssertMatchBytes(actual []byte, name string, opts ...MatchOption) {
	t.tb.Helper()
	outcome, err := t.snap.Check(actual, name, append(opts, AsBytes())...)
	t.report(name, outcome, err)
}

func (t *T) report(name string, outcome Outcome, err error) {
	t.tb.Helper()

	if err == nil {
		if outcome != Matched {
			t.tb.Logf("%s snapshot %s", outcome, name)
		}
		return
	}

	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		require.Equal(t.tb, mismatch.Expected, mismatch.Actual,
			"snapshot '%s' in '%s' does not match. run with -%s to update it.\n%s",
			mismatch.Name, mismatch.Dir, UpdateFlag, mismatch.Diff.Unified)
		return
	}

	require.NoError(t.tb, err)
}
