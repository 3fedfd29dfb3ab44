package snapshot

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tells whether a snapshot was created or overwritten.
type Kind int

const (
	Created Kind = iota + 1
	Updated
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "created":
		return Created, nil
	case "updated":
		return Updated, nil
	default:
		return 0, fmt.Errorf("unknown snapshot record kind %q", s)
	}
}

// Recorder receives every snapshot write made in update mode.
type Recorder interface {
	Record(dir, name string, kind Kind)
}

// Record is a single created or updated snapshot.
type Record struct {
	Dir  string
	Name string
	Kind Kind
}

type recordKey struct {
	dir, name string
}

// Session collects created and updated snapshots across a whole test run.
// It is safe for concurrent use, so tests may call t.Parallel.
type Session struct {
	mu      sync.Mutex
	id      string
	started time.Time
	records map[recordKey]Kind
}

// NewSession returns an initialized, empty session.
func NewSession() *Session {
	s := &Session{}
	s.Init()
	return s
}

// Init clears all records and starts a new session id.
func (s *Session) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.New().String()
	s.started = time.Now()
	s.records = make(map[recordKey]Kind)
}

// ID returns the identifier of the current session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Started returns when the current session was initialized.
func (s *Session) Started() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Record stores the kind for (dir, name); a later record for the same pair
// replaces the earlier one.
func (s *Session) Record(dir, name string, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[recordKey]Kind)
	}
	s.records[recordKey{dir: filepath.Clean(dir), name: name}] = kind
}

// Len returns the number of distinct recorded snapshots.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a copy of the records sorted by directory, then name.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for k, kind := range s.records {
		out = append(out, Record{Dir: k.dir, Name: k.name, Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dir != out[j].Dir {
			return out[i].Dir < out[j].Dir
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Finalize builds the end-of-session report. It returns nil when nothing
// was created or updated.
func (s *Session) Finalize() *Report {
	records := s.Records()
	if len(records) == 0 {
		return nil
	}

	r := &Report{SessionID: s.ID()}
	var cur *DirReport
	for _, rec := range records {
		if cur == nil || cur.Dir != rec.Dir {
			r.Dirs = append(r.Dirs, DirReport{Dir: rec.Dir})
			cur = &r.Dirs[len(r.Dirs)-1]
		}
		switch rec.Kind {
		case Created:
			cur.Created = append(cur.Created, rec.Name)
		case Updated:
			cur.Updated = append(cur.Updated, rec.Name)
		}
	}
	return r
}

// Report summarizes the snapshots written during one session, grouped by
// directory. Directories and the names inside each group are sorted.
type Report struct {
	SessionID string
	Dirs      []DirReport
}

// DirReport lists the created and updated snapshots of one directory.
type DirReport struct {
	Dir     string
	Created []string
	Updated []string
}

// Records flattens the report back into individual records.
func (r *Report) Records() []Record {
	var out []Record
	for _, d := range r.Dirs {
		for _, n := range d.Created {
			out = append(out, Record{Dir: d.Dir, Name: n, Kind: Created})
		}
		for _, n := range d.Updated {
			out = append(out, Record{Dir: d.Dir, Name: n, Kind: Updated})
		}
	}
	return out
}

// Counts returns the total number of created and updated snapshots.
func (r *Report) Counts() (created, updated int) {
	for _, d := range r.Dirs {
		created += len(d.Created)
		updated += len(d.Updated)
	}
	return created, updated
}

func (r *Report) String() string {
	var b strings.Builder
	for _, d := range r.Dirs {
		writeGroup(&b, "created", d.Dir, d.Created)
		writeGroup(&b, "updated", d.Dir, d.Updated)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeGroup(b *strings.Builder, verb, dir string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "The following snapshots were %s in '%s':\n", verb, dir)
	for _, n := range names {
		fmt.Fprintf(b, "  %s\n", n)
	}
}

// Err converts the report into the session-level failure.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return &DriftError{Report: r}
}
