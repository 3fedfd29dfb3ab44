package snapshot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// State classifies what lives at a resolved snapshot path.
type State int

const (
	Missing State = iota
	RegularFile
	Conflict
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case RegularFile:
		return "regular file"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// DefaultFileMode is the permission used for newly written snapshots.
const DefaultFileMode fs.FileMode = 0o644

// Store reads and writes snapshot files on the local filesystem.
type Store struct {
	perm fs.FileMode
}

// NewStore creates a store that writes files with the given permission.
// A zero perm falls back to DefaultFileMode.
func NewStore(perm fs.FileMode) *Store {
	if perm == 0 {
		perm = DefaultFileMode
	}
	return &Store{perm: perm}
}

// Resolve appends name to dir. The name is used as given: separators map
// onto nested paths and ".." or a leading separator are not cleaned away.
func (s *Store) Resolve(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir + name
	}
	return dir + string(filepath.Separator) + name
}

// Exists reports whether anything is present at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Classify reports whether path is missing, a regular file, or something
// that can never be used as a snapshot (a directory, a socket, ...).
func (s *Store) Classify(path string) (State, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Missing, nil
		}
		return Missing, &IOError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return Conflict, nil
	}
	return RegularFile, nil
}

// Read returns the stored content at path.
func (s *Store) Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return b, nil
}

// Write replaces the content at path, creating parent directories as
// needed. The data goes to a temporary sibling first and is renamed into
// place, so readers never observe a partially written snapshot.
func (s *Store) Write(path string, content []byte) error {
	dir := parentDir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	tmp := f.Name()

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Chmod(s.perm); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// parentDir is filepath.Dir without cleaning, so every component of a
// resolved name, including "a" in "a/../b", is created by MkdirAll
func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && !os.IsPathSeparator(path[i]) {
		i--
	}
	switch {
	case i < 0:
		return "."
	case i == 0:
		return path[:1]
	}
	return path[:i]
}

// List returns the slash-separated names of all regular files under dir,
// sorted. A missing dir yields no names and no error.
func (s *Store) List(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "list", Path: dir, Err: err}
	}
	sort.Strings(names)
	return names, nil
}
