package modlog

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLog stores entries in the moderation_logs table, relying on its unique (channel, cast) index for idempotence.
type GormLog struct {
	db *gorm.DB
}

var _ Log = (*GormLog)(nil)

func NewGormLog(db *gorm.DB) *GormLog {
	return &GormLog{db: db}
}

func (l *GormLog) Migrate() error {
	return l.db.AutoMigrate(&Entry{})
}

func (l *GormLog) HasProcessed(ctx context.Context, channelID, castHash string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&Entry{}).
		Where("channel_id = ? AND cast_hash = ?", channelID, castHash).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking moderation log: %w", err)
	}
	return count > 0, nil
}

func (l *GormLog) Processed(ctx context.Context, channelID string, castHashes []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(castHashes) == 0 {
		return out, nil
	}
	var found []string
	err := l.db.WithContext(ctx).Model(&Entry{}).
		Where("channel_id = ? AND cast_hash IN ?", channelID, castHashes).
		Pluck("cast_hash", &found).Error
	if err != nil {
		return nil, fmt.Errorf("checking moderation log batch: %w", err)
	}
	for _, h := range found {
		out[h] = true
	}
	return out, nil
}

func (l *GormLog) Record(ctx context.Context, e *Entry) error {
	cp := *e
	cp.ID = 0
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cp).Error
	if err != nil {
		return fmt.Errorf("recording moderation log entry: %w", err)
	}
	return nil
}

func (l *GormLog) List(ctx context.Context, channelID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var entries []*Entry
	err := l.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("listing moderation log: %w", err)
	}
	return entries, nil
}
