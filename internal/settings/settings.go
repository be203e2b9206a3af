// Package settings persists the panel's own durable state. The host
// owns chat content; the panel only keeps small bookkeeping records,
// currently the per-owner preview-chat registry, in a local sqlite file.
package settings

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreviewChat maps an owner key ("char_<id>" or "group_<id>") to the
// reusable preview chat created for that owner.
type PreviewChat struct {
	Key       string `gorm:"primaryKey;size:64"`
	ChatID    string `gorm:"size:255;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PreviewChat) TableName() string { return "preview_chats" }

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the settings database at path and
// migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&PreviewChat{}); err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// PreviewChatID returns the tracked preview chat for an owner key, ""
// when none has been created yet.
func (s *Store) PreviewChatID(ctx context.Context, key string) (string, error) {
	var rec PreviewChat
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return rec.ChatID, nil
}

// SetPreviewChatID upserts the tracked preview chat for an owner key.
func (s *Store) SetPreviewChatID(ctx context.Context, key, chatID string) error {
	rec := PreviewChat{Key: key, ChatID: chatID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "updated_at"}),
		}).
		Create(&rec).Error
}

// DeletePreviewChatID drops the tracked preview chat for an owner key.
func (s *Store) DeletePreviewChatID(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&PreviewChat{}, "key = ?", key).Error
}

// IsPreviewChat reports whether a chat id is any owner's tracked preview
// chat. Used as the guard that keeps favorite icons out of preview chats.
func (s *Store) IsPreviewChat(ctx context.Context, chatID string) (bool, error) {
	var cnt int64
	err := s.db.WithContext(ctx).Model(&PreviewChat{}).
		Where("chat_id = ?", chatID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}
