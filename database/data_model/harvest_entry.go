package data_model

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HarvestEntry is one row of persisted gallery map of the latest run.
type HarvestEntry struct {
	CreatedAt time.Time
	UpdatedAt time.Time

	ThumbURI  string `gorm:"primaryKey"`
	TargetURI string
}

func (entry *HarvestEntry) Upsert(db *gorm.DB) error {
	return db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "thumb_uri"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_uri", "updated_at"}),
		},
	).Create(entry).Error
}
