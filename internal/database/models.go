package database

import (
	"time"

	"gorm.io/gorm"
)

// DriftEntry is a snapshot created or updated by a test session that has
// not been reviewed yet
type DriftEntry struct {
	ID         uint      `gorm:"primaryKey"`
	SessionID  string    `gorm:"not null;index"`
	Dir        string    `gorm:"not null;uniqueIndex:idx_drift_dir_name"`
	Name       string    `gorm:"not null;uniqueIndex:idx_drift_dir_name"`
	Kind       string    `gorm:"not null"` // created or updated
	RecordedAt time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (DriftEntry) TableName() string {
	return "drift_entries"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DriftEntry{})
}
