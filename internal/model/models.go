package model

import (
	"time"
)

// StorageEntry is one serialized document kept under a stable key,
// e.g. the saved profile list.
type StorageEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// UserSettings is the single row of per-user local settings.
type UserSettings struct {
	ID uint `gorm:"primaryKey;autoIncrement:false"`

	// DefaultProfileID is empty when no default is chosen.
	DefaultProfileID string
	UpdatedAt        time.Time
}

// UserSettingsRowID is the primary key of the only UserSettings row.
const UserSettingsRowID = 1
