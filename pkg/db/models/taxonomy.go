package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Brand is a manufacturer label attached to products.
type Brand struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null;uniqueIndex:idx_brands_name"`
	Slug      string         `gorm:"column:slug;not null;uniqueIndex:idx_brands_slug"`
	IsActive  bool           `gorm:"column:is_active;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (b *Brand) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// Category is the top level of the product taxonomy.
type Category struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null;uniqueIndex:idx_categories_name"`
	Slug      string         `gorm:"column:slug;not null;uniqueIndex:idx_categories_slug"`
	IsActive  bool           `gorm:"column:is_active;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// SubCategory belongs to exactly one Category; slugs are unique per category.
type SubCategory struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name       string         `gorm:"column:name;not null"`
	Slug       string         `gorm:"column:slug;not null;uniqueIndex:idx_sub_categories_category_slug,priority:2"`
	CategoryID uuid.UUID      `gorm:"column:category_id;type:uuid;not null;uniqueIndex:idx_sub_categories_category_slug,priority:1"`
	Category   *Category      `gorm:"foreignKey:CategoryID"`
	IsActive   bool           `gorm:"column:is_active;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (s *SubCategory) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
