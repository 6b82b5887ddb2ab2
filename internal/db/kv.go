package db

import (
	"context"
	"fmt"
	"time"

	"vpnprofile/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyValueStore keeps whole serialized documents in the storage_entries table.
type KeyValueStore struct {
	db *gorm.DB
}

func NewKeyValueStore(db *gorm.DB) *KeyValueStore {
	return &KeyValueStore{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry model.StorageEntry
	res := s.db.WithContext(ctx).Where("entry_key = ?", key).Limit(1).Find(&entry)
	if res.Error != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	return []byte(entry.Value), true, nil
}

// Put inserts or replaces the value stored under key.
func (s *KeyValueStore) Put(ctx context.Context, key string, value []byte) error {
	entry := model.StorageEntry{Key: key, Value: string(value), UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&model.StorageEntry{}, "entry_key = ?", key).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
