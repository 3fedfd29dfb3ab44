package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Mode selects how stored content is compared with the actual value.
type Mode int

const (
	// ModeText decodes the stored bytes as UTF-8 and compares exactly.
	ModeText Mode = iota
	// ModeBytes compares raw bytes without decoding.
	ModeBytes
)

func (m Mode) String() string {
	if m == ModeBytes {
		return "bytes"
	}
	return "text"
}

// ParseMode maps a configuration value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return ModeText, nil
	case "bytes", "exact":
		return ModeBytes, nil
	default:
		return ModeText, fmt.Errorf("unknown comparison mode %q", s)
	}
}

// DefaultDiffContext is the number of unchanged lines shown around a hunk.
const DefaultDiffContext = 3

var errInvalidUTF8 = errors.New("stored content is not valid UTF-8")

// Comparator decides equality between actual and stored content and
// describes the difference when they are not equal.
type Comparator struct {
	Mode    Mode
	Context int
}

// Equal reports whether actual matches stored. In text mode stored must
// decode as UTF-8; no other normalization takes place, so a trailing
// newline or a CRLF line ending is a real difference.
func (c Comparator) Equal(actual, stored []byte) (bool, error) {
	if c.Mode == ModeText && !utf8.Valid(stored) {
		return false, errInvalidUTF8
	}
	return bytes.Equal(actual, stored), nil
}

// DiffLine is one line of a structural diff.
// Op is ' ' for context, '-' for lines only in the snapshot and '+' for
// lines only in the actual value.
type DiffLine struct {
	Op   byte
	Text string
}

func (l DiffLine) String() string {
	return string(l.Op) + " " + l.Text
}

// Diff is a human-readable description of a mismatch. It never influences
// whether an assertion passes.
type Diff struct {
	Lines   []DiffLine
	Unified string
}

// Added returns the lines present only in the actual value.
func (d Diff) Added() []string { return d.filter('+') }

// Removed returns the lines present only in the stored snapshot.
func (d Diff) Removed() []string { return d.filter('-') }

func (d Diff) filter(op byte) []string {
	var out []string
	for _, l := range d.Lines {
		if l.Op == op {
			out = append(out, l.Text)
		}
	}
	return out
}

// Diff builds the line-level difference from stored to actual.
func (c Comparator) Diff(stored, actual []byte, fromName, toName string) Diff {
	a := splitLinesKeepNL(string(stored))
	b := splitLinesKeepNL(string(actual))

	var lines []DiffLine
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'e':
			lines = appendLines(lines, ' ', a[op.I1:op.I2])
		case 'd':
			lines = appendLines(lines, '-', a[op.I1:op.I2])
		case 'i':
			lines = appendLines(lines, '+', b[op.J1:op.J2])
		case 'r':
			lines = appendLines(lines, '-', a[op.I1:op.I2])
			lines = appendLines(lines, '+', b[op.J1:op.J2])
		}
	}

	ctx := c.Context
	if ctx <= 0 {
		ctx = DefaultDiffContext
	}
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(stored)),
		B:        difflib.SplitLines(string(actual)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		s = fmt.Sprintf("--- %s\n+++ %s\n# contents differ only in line endings or trailing newline\n", fromName, toName)
	}
	return Diff{Lines: lines, Unified: s}
}

func appendLines(dst []DiffLine, op byte, src []string) []DiffLine {
	for _, s := range src {
		dst = append(dst, DiffLine{Op: op, Text: strings.TrimSuffix(s, "\n")})
	}
	return dst
}

// splitLinesKeepNL splits into lines and keeps the newline characters so
// that "a" and "a\n" produce different lines.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
