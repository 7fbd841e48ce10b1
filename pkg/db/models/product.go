package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

// Product represents a catalog listing owned by a seller.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name          string              `gorm:"column:name;not null"`
	Slug          string              `gorm:"column:slug;not null;uniqueIndex:idx_products_slug"`
	Description   *string             `gorm:"column:description"`
	BrandID       uuid.UUID           `gorm:"column:brand_id;type:uuid;not null;index"`
	Brand         *Brand              `gorm:"foreignKey:BrandID"`
	SubCategoryID uuid.UUID           `gorm:"column:sub_category_id;type:uuid;not null;index"`
	SubCategory   *SubCategory        `gorm:"foreignKey:SubCategoryID"`
	Status        enums.ProductStatus `gorm:"column:status;type:varchar(16);not null;index"`
	CreatedBy     uuid.UUID           `gorm:"column:created_by;type:uuid;not null"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Variants      []ProductVariant    `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is a purchasable configuration of a product.
type ProductVariant struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string              `gorm:"column:sku;not null;uniqueIndex:idx_product_variants_sku"`
	Attributes datatypes.JSONMap   `gorm:"column:attributes"`
	Price      decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	MRP        decimal.NullDecimal `gorm:"column:mrp;type:numeric(10,2)"`
	Stock      int                 `gorm:"column:stock;not null"`
	IsActive   bool                `gorm:"column:is_active;not null"`
	IsDefault  bool                `gorm:"column:is_default;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	if v.Attributes == nil {
		v.Attributes = datatypes.JSONMap{}
	}
	return nil
}
