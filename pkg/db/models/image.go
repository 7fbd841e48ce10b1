package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

// Image is a stored object attached to a polymorphic owner.
type Image struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	URL        string           `gorm:"column:url;not null"`
	Bucket     string           `gorm:"column:bucket;not null"`
	ObjectKey  string           `gorm:"column:object_key;not null"`
	ModuleType enums.ModuleType `gorm:"column:module_type;type:varchar(32);not null;index:idx_images_module,priority:1"`
	ModuleID   uuid.UUID        `gorm:"column:module_id;type:uuid;not null;index:idx_images_module,priority:2"`
	Type       enums.ImageType  `gorm:"column:type;type:varchar(16);not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt   `gorm:"column:deleted_at;index"`
}

func (i *Image) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
