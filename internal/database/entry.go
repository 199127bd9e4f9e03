package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is a single key/value pair.
// The value is an opaque string, usually a serialized JSON blob.
type Entry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	if err := c.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		log.Error("failed to get entry", "key", key, "error", err)
		return "", false, err
	}
	return entry.Value, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	entry := Entry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		log.Error("failed to set entry", "key", key, "error", err)
		return err
	}
	return nil
}

// Keys returns all stored keys, used by diagnostics.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := c.db.WithContext(ctx).Model(&Entry{}).Order("key").Pluck("key", &keys).Error; err != nil {
		log.Error("failed to list keys", "error", err)
		return nil, err
	}
	return keys, nil
}
