package channelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/castmod/castmod/automod/rule"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ModeratedChannel struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// JSON wire form of rule.Channel
	Config string `gorm:"not null"`
}

func (ModeratedChannel) TableName() string {
	return "moderated_channels"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&ModeratedChannel{})
}

func (s *GormStore) Get(ctx context.Context, channelID string) (*rule.Channel, error) {
	var row ModeratedChannel
	if err := s.db.WithContext(ctx).Where("id = ?", channelID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ch, err := rule.ParseChannel([]byte(row.Config))
	if err != nil {
		return nil, fmt.Errorf("stored config for %s: %w", channelID, err)
	}
	return ch, nil
}

func (s *GormStore) Put(ctx context.Context, ch *rule.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encoding channel %s: %w", ch.ID, err)
	}
	row := ModeratedChannel{ID: ch.ID, Config: string(raw)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&ModeratedChannel{}).Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
