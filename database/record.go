package database

import (
	"errors"
	"os"

	"github.com/SirZenith/gimme/database/data_model"
	"gorm.io/gorm"
)

// FindRecord returns download record of given source URI, nil when there is
// none.
func FindRecord(db *gorm.DB, sourceURI string) (*data_model.DownloadRecord, error) {
	record := &data_model.DownloadRecord{}

	err := db.Where("source_uri = ?", sourceURI).Take(record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return record, nil
}

// IsDownloaded checks if source URI has been saved successfully and its file
// still exists on disk.
func IsDownloaded(db *gorm.DB, sourceURI string) bool {
	record, err := FindRecord(db, sourceURI)
	if err != nil || record == nil {
		return false
	}

	if record.DlFailed || record.DestPath == "" {
		return false
	}

	stat, err := os.Stat(record.DestPath)

	return err == nil && stat.Mode().IsRegular()
}

// SaveRecord updates download record of a source URI.
func SaveRecord(db *gorm.DB, sourceURI, thumbURI, destPath string, failed bool) error {
	record := &data_model.DownloadRecord{
		SourceURI: sourceURI,
		ThumbURI:  thumbURI,
		DestPath:  destPath,
		DlFailed:  failed,
	}

	return record.Upsert(db)
}
