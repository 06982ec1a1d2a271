package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document is one persisted collection: a key and its whole JSON payload.
type Document struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value []byte `gorm:"type:longblob" json:"value"`
}

// GormStore persists collections in a single key/value table. Reads and
// writes of one key are atomic; there is deliberately no transaction spanning
// keys, matching the store semantics the engine is written against.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, "`key` = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

func (s *GormStore) Save(ctx context.Context, key string, value []byte) error {
	doc := Document{Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&doc).Error
}
