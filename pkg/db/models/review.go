package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductReview is a single user's rating of a product.
type ProductReview struct {
	ID                 uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID          uuid.UUID      `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_reviews_product_user,priority:1,where:deleted_at IS NULL"`
	UserID             uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_product_reviews_product_user,priority:2,where:deleted_at IS NULL"`
	Rating             int            `gorm:"column:rating;not null"`
	Title              *string        `gorm:"column:title"`
	Comment            *string        `gorm:"column:comment"`
	IsVerifiedPurchase bool           `gorm:"column:is_verified_purchase;not null"`
	IsActive           bool           `gorm:"column:is_active;not null"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (r *ProductReview) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
