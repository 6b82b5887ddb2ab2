// Package settings keeps the user's local settings, most importantly the
// reference to the default profile.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vpnprofile/internal/logger"
	"vpnprofile/internal/model"
	"vpnprofile/internal/observe"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Manager struct {
	db        *gorm.DB
	writeMu   sync.Mutex
	defaultID *observe.Value[uuid.NullUUID]
}

// Load reads the settings row. A stored id that does not parse is treated as
// no default at all.
func Load(ctx context.Context, db *gorm.DB) (*Manager, error) {
	var row model.UserSettings
	if err := db.WithContext(ctx).Limit(1).Find(&row, model.UserSettingsRowID).Error; err != nil {
		return nil, fmt.Errorf("read user settings: %w", err)
	}

	var ref uuid.NullUUID
	if row.DefaultProfileID != "" {
		id, err := uuid.Parse(row.DefaultProfileID)
		if err != nil {
			logger.For("settings").Warnf("Ignoring malformed default profile id %q", row.DefaultProfileID)
		} else {
			ref = uuid.NullUUID{UUID: id, Valid: true}
		}
	}

	return &Manager{db: db, defaultID: observe.NewValue(ref)}, nil
}

func (m *Manager) DefaultProfileID() uuid.NullUUID {
	return m.defaultID.Get()
}

// Subscribe streams the default profile reference, starting with the current one.
func (m *Manager) Subscribe() (<-chan uuid.NullUUID, func()) {
	return m.defaultID.Subscribe()
}

// UpdateDefaultProfile stores id (or clears the reference when id is not
// valid). Subscribers are notified only after the write succeeded.
func (m *Manager) UpdateDefaultProfile(ctx context.Context, id uuid.NullUUID) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	row := model.UserSettings{ID: model.UserSettingsRowID, UpdatedAt: time.Now()}
	if id.Valid {
		row.DefaultProfileID = id.UUID.String()
	}

	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"default_profile_id", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write user settings: %w", err)
	}

	m.defaultID.Set(id)
	return nil
}
