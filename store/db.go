package store

import (
	"context"
	"fmt"

	"github.com/SirZenith/gimme/database"
	"github.com/SirZenith/gimme/database/data_model"
	"github.com/SirZenith/gimme/gallery"
	"gorm.io/gorm"
)

const dbBatchSize = 200

// DBStore keeps gallery map in SQLite table `harvest_entries`.
type DBStore struct {
	db *gorm.DB
}

func OpenDB(filePath string) (*DBStore, error) {
	db, err := database.Open(filePath)
	if err != nil {
		return nil, err
	}

	return &DBStore{db: db}, nil
}

// NewDBStore wraps an already opened database.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// DB returns underlying database handle.
func (s *DBStore) DB() *gorm.DB {
	return s.db
}

// Save replaces all stored entries with given map in one transaction.
func (s *DBStore) Save(ctx context.Context, m gallery.GalleryMap) error {
	entries := make([]*data_model.HarvestEntry, 0, len(m))
	for _, thumb := range m.Keys() {
		entries = append(entries, &data_model.HarvestEntry{
			ThumbURI:  thumb,
			TargetURI: m[thumb],
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&data_model.HarvestEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous state: %s", err)
		}

		if len(entries) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(entries, dbBatchSize).Error; err != nil {
			return fmt.Errorf("failed to save state: %s", err)
		}

		return nil
	})
}

func (s *DBStore) Load(ctx context.Context) (gallery.GalleryMap, error) {
	entries := []data_model.HarvestEntry{}
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load state: %s", err)
	}

	m := gallery.GalleryMap{}
	for _, entry := range entries {
		m[entry.ThumbURI] = entry.TargetURI
	}

	return m, nil
}

func (s *DBStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&data_model.HarvestEntry{}).Error
}

func (s *DBStore) Close() error {
	return database.Close(s.db)
}
