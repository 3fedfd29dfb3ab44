package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaseDir creates <tmp>/case_dir with snapshot1.txt, chdirs into tmp and
// returns "case_dir" so messages carry the relative directory.
func newCaseDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	chdir(t, root)

	require.NoError(t, os.Mkdir("case_dir", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("case_dir", "snapshot1.txt"), []byte("the value of snapshot1.txt"), 0o644))
	return "case_dir"
}

func newSnapshotter(dir string, update bool, session *Session) *Snapshotter {
	return New(WithDir(dir), WithUpdate(update), WithRecorder(session))
}

func TestCheck_Match(t *testing.T) {
	dir := newCaseDir(t)
	session := NewSession()
	snap := newSnapshotter(dir, false, session)

	outcome, err := snap.Check([]byte("the value of snapshot1.txt"), "snapshot1.txt")
	require.NoError(t, err)
	assert.Equal(t, Matched, outcome)
	assert.Equal(t, 0, session.Len())
}

func TestCheck_MatchDoesNotWrite(t *testing.T) {
	dir := newCaseDir(t)
	path := filepath.Join(dir, "snapshot1.txt")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	for _, update := range []bool{false, true} {
		snap := newSnapshotter(dir, update, NewSession())
		require.NoError(t, snap.Match("the value of snapshot1.txt", "snapshot1.txt"))
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "matching snapshot must not be rewritten")
}

func TestCheck_Mismatch(t *testing.T) {
	dir := newCaseDir(t)
	session := NewSession()
	snap := newSnapshotter(dir, false, session)

	err := snap.Match("the INCORRECT value of snapshot1.txt", "snapshot1.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatch)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "the value of snapshot1.txt", mismatch.Expected)
	assert.Equal(t, "the INCORRECT value of snapshot1.txt", mismatch.Actual)
	assert.Equal(t, []string{"the value of snapshot1.txt"}, mismatch.Diff.Removed())
	assert.Equal(t, []string{"the INCORRECT value of snapshot1.txt"}, mismatch.Diff.Added())
	assert.Contains(t, err.Error(), "-the value of snapshot1.txt")
	assert.Contains(t, err.Error(), "+the INCORRECT value of snapshot1.txt")

	content, readErr := os.ReadFile(filepath.Join(dir, "snapshot1.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "the value of snapshot1.txt", string(content))
	assert.Equal(t, 0, session.Len())
}

func TestCheck_MismatchShowsOnlyDifferingLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "multi.txt"), []byte("a\nb\nc\nd\n"), 0o644))
	snap := newSnapshotter(dir, false, NewSession())

	err := snap.Match("a\nB\nc\nd\ne\n", "multi.txt")
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"b"}, mismatch.Diff.Removed())
	assert.Equal(t, []string{"B", "e"}, mismatch.Diff.Added())
}

func TestCheck_MissingSnapshot(t *testing.T) {
	dir := newCaseDir(t)
	session := NewSession()
	snap := newSnapshotter(dir, false, session)

	err := snap.Match("something", "snapshot_that_doesnt_exist.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "Snapshot 'snapshot_that_doesnt_exist.txt' doesn't exist in 'case_dir'.")
	assert.Contains(t, err.Error(), "Run with -snapshot-update to create it.")

	assert.NoFileExists(t, filepath.Join(dir, "snapshot_that_doesnt_exist.txt"))
	assert.Equal(t, 0, session.Len())
}

func TestCheck_MissingSnapshotSuggestsSimilarNames(t *testing.T) {
	dir := newCaseDir(t)
	snap := newSnapshotter(dir, false, NewSession())

	err := snap.Match("something", "snap1.txt")
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"snapshot1.txt"}, missing.Suggestions)
	assert.Contains(t, err.Error(), "Did you mean 'snapshot1.txt'?")

	snap = New(WithDir(dir), WithSuggestions(0))
	err = snap.Match("something", "snap1.txt")
	require.ErrorAs(t, err, &missing)
	assert.Empty(t, missing.Suggestions)
}

func TestCheck_UpdateExistingNoChange(t *testing.T) {
	dir := newCaseDir(t)
	session := NewSession()
	snap := newSnapshotter(dir, true, session)

	outcome, err := snap.Check([]byte("the value of snapshot1.txt"), "snapshot1.txt")
	require.NoError(t, err)
	assert.Equal(t, Matched, outcome)
	assert.Nil(t, session.Finalize())
}

func TestCheck_UpdateExisting(t *testing.T) {
	dir := newCaseDir(t)
	session := NewSession()
	snap := newSnapshotter(dir, true, session)

	outcome, err := snap.Check([]byte("the NEW value of snapshot1.txt"), "snapshot1.txt")
	require.NoError(t, err)
	assert.Equal(t, UpdatedSnapshot, outcome)

	content, err := os.ReadFile(filepath.Join(dir, "snapshot1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "the NEW value of snapshot1.txt", string(content))

	report := session.Finalize()
	require.NotNil(t, report)
	assert.Equal(t, "The following snapshots were updated in 'case_dir':\n  snapshot1.txt", report.String())
}

func TestCheck_CreateNew(t *testing.T) {
	dir := newCaseDir(t)
	session := NewSession()
	snap := newSnapshotter(dir, true, session)

	outcome, err := snap.Check([]byte("the NEW value of new_snapshot1.txt"), "new_snapshot1.txt")
	require.NoError(t, err)
	assert.Equal(t, CreatedSnapshot, outcome)
	assert.FileExists(t, filepath.Join(dir, "new_snapshot1.txt"))

	report := session.Finalize()
	require.NotNil(t, report)
	assert.Equal(t, "The following snapshots were created in 'case_dir':\n  new_snapshot1.txt", report.String())
}

func TestCheck_CreateNested(t *testing.T) {
	dir := t.TempDir()
	session := NewSession()
	snap := newSnapshotter(dir, true, session)

	require.NoError(t, snap.Match("nested", "a/b/c.txt"))
	assert.FileExists(t, filepath.Join(dir, "a", "b", "c.txt"))
	assert.Equal(t, []Record{{Dir: dir, Name: "a/b/c.txt", Kind: Created}}, session.Records())
}

func TestCheck_Idempotent(t *testing.T) {
	dir := newCaseDir(t)

	first := NewSession()
	require.NoError(t, newSnapshotter(dir, true, first).Match("changed", "snapshot1.txt"))
	require.NotNil(t, first.Finalize())

	second := NewSession()
	require.NoError(t, newSnapshotter(dir, true, second).Match("changed", "snapshot1.txt"))
	assert.Nil(t, second.Finalize())
}

func TestCheck_DirectoryConflict(t *testing.T) {
	for _, update := range []bool{false, true} {
		t.Run(map[bool]string{false: "check", true: "update"}[update], func(t *testing.T) {
			dir := newCaseDir(t)
			require.NoError(t, os.Mkdir(filepath.Join(dir, "directory1"), 0o755))
			session := NewSession()

			err := newSnapshotter(dir, update, session).Match("something", "directory1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Equal(t, "invalid snapshot file "+filepath.Join("case_dir", "directory1"), err.Error())
			assert.DirExists(t, filepath.Join(dir, "directory1"))
			assert.Equal(t, 0, session.Len())
		})
	}
}

func TestCheck_PerCallDirectory(t *testing.T) {
	root := t.TempDir()
	session := NewSession()
	snap := New(WithDir(filepath.Join(root, "default")), WithUpdate(true), WithRecorder(session))

	require.NoError(t, snap.Match("one", "value.txt"))
	require.NoError(t, snap.Match("two", "value.txt", InDir(filepath.Join(root, "other"))))
	require.NoError(t, snap.WithDir(filepath.Join(root, "third")).Match("three", "value.txt"))

	report := session.Finalize()
	require.NotNil(t, report)
	require.Len(t, report.Dirs, 3)
	assert.Equal(t, filepath.Join(root, "default"), report.Dirs[0].Dir)
	assert.Equal(t, filepath.Join(root, "other"), report.Dirs[1].Dir)
	assert.Equal(t, filepath.Join(root, "third"), report.Dirs[2].Dir)
	assert.Equal(t, filepath.Join(root, "default"), snap.Dir())
}

func TestCheck_TrailingNewlineIsAMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nl.txt"), []byte("value"), 0o644))
	snap := newSnapshotter(dir, false, NewSession())

	err := snap.Match("value\n", "nl.txt")
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestCheck_BytesMode(t *testing.T) {
	dir := t.TempDir()
	blob := []byte{0xff, 0x00, 0xfe}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), blob, 0o644))
	snap := newSnapshotter(dir, false, NewSession())

	require.NoError(t, snap.MatchBytes(blob, "blob.bin"))
	assert.ErrorIs(t, snap.MatchBytes([]byte{0xff}, "blob.bin"), ErrMismatch)

	var ioErr *IOError
	err := snap.Match(string(blob), "blob.bin")
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "decode", ioErr.Op)
}

func TestCheck_WriteFailureIsIOError(t *testing.T) {
	root := t.TempDir()
	// A regular file where the snapshot directory should be
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	session := NewSession()
	snap := New(WithDir(filepath.Join(blocker, "dir")), WithUpdate(true), WithRecorder(session))

	err := snap.Match("value", "name.txt")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, 0, session.Len())
}

func TestCheck_UpdateFuncReadPerCall(t *testing.T) {
	dir := t.TempDir()
	update := false
	session := NewSession()
	snap := New(WithDir(dir), WithUpdateFunc(func() bool { return update }), WithRecorder(session))

	assert.ErrorIs(t, snap.Match("v", "x.txt"), ErrMissing)
	update = true
	assert.NoError(t, snap.Match("v", "x.txt"))
	assert.True(t, snap.UpdateMode())
	assert.Equal(t, 1, session.Len())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "matched", Matched.String())
	assert.Equal(t, "created", CreatedSnapshot.String())
	assert.Equal(t, "updated", UpdatedSnapshot.String())
}
