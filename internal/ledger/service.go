// Package ledger keeps the queue of snapshots that test sessions created or
// updated and that nobody has reviewed yet. It is not a history: an entry
// is replaced when the same snapshot drifts again and removed when it is
// acknowledged.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justchokingaround/snapshot/internal/database"
)

// ErrNotPending is returned when acknowledging a snapshot with no entry
var ErrNotPending = errors.New("snapshot is not pending review")

// Entry is a single drifted snapshot to store
type Entry struct {
	Dir  string // relative dirs resolve against the working directory

	Name string
	Kind string // created or updated
}

// Filter narrows Pending results
type Filter struct {
	Dir   string // exact directory, empty for all
	Kind  string // created, updated, or empty for both
	Limit int    // 0 = no limit
}

// Service provides drift ledger operations
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new ledger service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Record stores entries for sessionID, replacing any pending entry for the
// same directory and name
func (s *Service) Record(ctx context.Context, sessionID string, entries []Entry) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if len(entries) == 0 {
		return nil
	}

	now := s.now()
	rows := make([]database.DriftEntry, len(entries))
	for i, e := range entries {
		rows[i] = database.DriftEntry{
			SessionID:  sessionID,
			Dir:        absDir(e.Dir),
			Name:       e.Name,
			Kind:       e.Kind,
			RecordedAt: now,
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dir"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "kind", "recorded_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to record drift: %w", err)
	}
	return nil
}

// absDir keys entries by absolute directory, since the ledger is shared
// by every package and relative snapshot dirs repeat across them
func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	return abs
}

// Pending lists unacknowledged entries ordered by directory and name
func (s *Service) Pending(ctx context.Context, filter Filter) ([]database.DriftEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.WithContext(ctx).Model(&database.DriftEntry{})
	if filter.Dir != "" {
		query = query.Where("dir = ?", absDir(filter.Dir))
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	query = query.Order("dir ASC").Order("name ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []database.DriftEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending drift: %w", err)
	}
	return entries, nil
}

// Ack removes the pending entry for dir and name
func (s *Service) Ack(ctx context.Context, dir, name string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	res := s.db.WithContext(ctx).
		Where("dir = ? AND name = ?", absDir(dir), name).
		Delete(&database.DriftEntry{})
	if res.Error != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", filepath.Join(dir, name), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", filepath.Join(dir, name), ErrNotPending)
	}
	return nil
}

// AckAll removes every pending entry and returns how many were removed
func (s *Service) AckAll(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&database.DriftEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to acknowledge drift: %w", res.Error)
	}
	return res.RowsAffected, nil
}
