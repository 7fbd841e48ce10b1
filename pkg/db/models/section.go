package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Section is a curated, ordered list of products or variants.
type Section struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	Name      string        `gorm:"column:name;not null"`
	Key       string        `gorm:"column:key;not null;uniqueIndex:idx_sections_key"`
	IsActive  bool          `gorm:"column:is_active;not null"`
	Items     []SectionItem `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Section) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SectionItem references exactly one product or one variant.
type SectionItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SectionID uuid.UUID  `gorm:"column:section_id;type:uuid;not null;index"`
	ProductID *uuid.UUID `gorm:"column:product_id;type:uuid"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	SortOrder int        `gorm:"column:sort_order;not null"`
	IsActive  bool       `gorm:"column:is_active;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *SectionItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
