package data_model

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DownloadRecord remembers where a source URI has been saved to.
type DownloadRecord struct {
	gorm.Model

	SourceURI string `gorm:"unique"`
	ThumbURI  string
	DestPath  string

	DlFailed bool // Mark true when last download attempt for this entry failed
}

func (record *DownloadRecord) Upsert(db *gorm.DB) error {
	return db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_uri"}},
			DoUpdates: clause.AssignmentColumns([]string{"thumb_uri", "dest_path", "dl_failed", "updated_at"}),
		},
	).Create(record).Error
}
