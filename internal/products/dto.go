package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/internal/images"
	"github.com/angelmondragon/catalog-backend/internal/variants"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

// ProductDTO is the API representation of a product row.
type ProductDTO struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Description   *string             `json:"description"`
	BrandID       uuid.UUID           `json:"brandId"`
	SubCategoryID uuid.UUID           `json:"subCategoryId"`
	Status        enums.ProductStatus `json:"status"`
	CreatedBy     uuid.UUID           `json:"createdBy"`
	SellerID      uuid.UUID           `json:"sellerId"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// NewProductDTO maps the product model.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	return &ProductDTO{
		ID:            product.ID,
		Name:          product.Name,
		Slug:          product.Slug,
		Description:   product.Description,
		BrandID:       product.BrandID,
		SubCategoryID: product.SubCategoryID,
		Status:        product.Status,
		CreatedBy:     product.CreatedBy,
		SellerID:      product.SellerID,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

// TaxonomyRef is a compact id/name/slug triple.
type TaxonomyRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ProductDetailDTO is the full product view with variants and images.
type ProductDetailDTO struct {
	ProductDTO
	Brand          *TaxonomyRef          `json:"brand"`
	SubCategory    *TaxonomyRef          `json:"subCategory"`
	Images         []images.ImageDTO     `json:"images"`
	Variants       []variants.VariantDTO `json:"variants"`
	DefaultVariant *variants.VariantDTO  `json:"defaultVariant"`
}
