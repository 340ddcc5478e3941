package entities

import "time"

// FileRecord represents the persisted file metadata. Byte-identical uploads
// share one stored payload (addressed by ContentHash); each upload still gets
// its own row. Exactly one row per content hash has IsDuplicate=false, every
// other row of the group points at that owner through OwnerRef.
type FileRecord struct {
	ID               string    `gorm:"type:varchar(40);primaryKey"`
	OriginalFilename string    `gorm:"type:varchar(255);not null"`
	MediaType        string    `gorm:"type:varchar(100);not null"`
	Size             int64     `gorm:"not null"`
	ContentHash      string    `gorm:"type:char(64);index;not null"`
	IsDuplicate      bool      `gorm:"not null;default:false"`
	OwnerRef         *string   `gorm:"type:varchar(40);index"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (FileRecord) TableName() string {
	return "file_records"
}
