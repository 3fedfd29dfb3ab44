package snapshot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConflict = errors.New("invalid snapshot file")
	ErrMissing  = errors.New("snapshot does not exist")
	ErrMismatch = errors.New("snapshot does not match")
	ErrDrift    = errors.New("snapshots were created or updated")
)

// UpdateFlag is the command-line switch that turns on update mode.
const UpdateFlag = "snapshot-update"

// ConflictError is returned when the snapshot path exists but is not a
// regular file. It is never resolved automatically, not even in update mode.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("invalid snapshot file %s", e.Path)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// MissingError is returned when no snapshot exists and update mode is off.
type MissingError struct {
	Name string
	Dir  string

	// Suggestions holds existing snapshot names in Dir that look like Name.
	Suggestions []string
}

func (e *MissingError) Error() string {
	msg := fmt.Sprintf("Snapshot '%s' doesn't exist in '%s'.\nRun with -%s to create it.", e.Name, e.Dir, UpdateFlag)
	if len(e.Suggestions) > 0 {
		quoted := make([]string, len(e.Suggestions))
		for i, n := range e.Suggestions {
			quoted[i] = "'" + n + "'"
		}
		msg += fmt.Sprintf("\nDid you mean %s?", strings.Join(quoted, ", "))
	}
	return msg
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

// MismatchError is returned when the stored snapshot differs from the
// actual value and update mode is off.
type MismatchError struct {
	Name     string
	Dir      string
	Path     string
	Expected string
	Actual   string
	Diff     Diff
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("Snapshot '%s' in '%s' does not match:\n%s", e.Name, e.Dir, e.Diff.Unified)
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }

// IOError wraps a filesystem failure that is unrelated to snapshot
// semantics (permissions, disk, undecodable content).
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// DriftError is the session-level failure raised when any snapshot was
// created or updated during the run.
type DriftError struct {
	Report *Report
}

func (e *DriftError) Error() string {
	return e.Report.String()
}

func (e *DriftError) Is(target error) bool { return target == ErrDrift }
