package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Search        string
	BrandID       *uuid.UUID
	SubCategoryID *uuid.UUID
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}

// ListProductsInput captures the inputs needed to filter and page products.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
	// Privileged callers also see draft and inactive products.
	Privileged bool
}

// ProductSummary is the listing view of a product resolved against its
// default variant and primary images.
type ProductSummary struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Description   *string             `json:"description"`
	CoverImage    *string             `json:"coverImage"`
	Price         *decimal.Decimal    `json:"price"`
	MRP           *decimal.Decimal    `json:"mrp"`
	BrandID       uuid.UUID           `json:"brandId"`
	SubCategoryID uuid.UUID           `json:"subCategoryId"`
	Status        enums.ProductStatus `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func (r productSummaryRecord) toSummary() ProductSummary {
	return ProductSummary{
		ID:            r.ID,
		Name:          r.Name,
		Slug:          r.Slug,
		Description:   r.Description,
		BrandID:       r.BrandID,
		SubCategoryID: r.SubCategoryID,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
