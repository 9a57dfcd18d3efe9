package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/SirZenith/gimme/database/data_model"
	"github.com/glebarez/sqlite"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens sqlite database holding harvest entries and download records,
// creating the file and its directory when missing.
func Open(filePath string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for database %s: %s", filePath, err)
	}

	db, err := gorm.Open(sqlite.Open(filePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %s", filePath, err)
	}

	err = db.AutoMigrate(
		&data_model.HarvestEntry{},
		&data_model.DownloadRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("database migration failed: %s", err)
	}

	// sqlite file takes one writer at a time
	if inner, err := db.DB(); err == nil {
		inner.SetMaxOpenConns(1)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	inner, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to close database, can't read inner data: %s", err)
	}

	err = inner.Close()
	if err != nil {
		return fmt.Errorf("failed to close inner database: %s", err)
	}

	return nil
}
