package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/images"
	"github.com/angelmondragon/catalog-backend/internal/slugs"
	"github.com/angelmondragon/catalog-backend/internal/variants"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// Service exposes product management and the aggregated read views.
type Service interface {
	CreateProduct(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	UpdateStatus(ctx context.Context, productID uuid.UUID, status enums.ProductStatus) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	ListProducts(ctx context.Context, input ListProductsInput) (pagination.Page[ProductSummary], error)
	GetProductDetail(ctx context.Context, productID uuid.UUID) (*ProductDetailDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name          string
	Description   *string
	BrandID       uuid.UUID
	SubCategoryID uuid.UUID
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	BrandID       *uuid.UUID
	SubCategoryID *uuid.UUID
}

type imageFinder interface {
	FindForOwners(ctx context.Context, owners images.Owners, types ...enums.ImageType) ([]models.Image, error)
}

// service implements the product service.
type service struct {
	repo     *Repository
	dbClient db.TxRunner
	images   imageFinder
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient db.TxRunner, imageRepo imageFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if imageRepo == nil {
		return nil, fmt.Errorf("image repository required")
	}
	return &service{repo: repo, dbClient: dbClient, images: imageRepo}, nil
}

// CreateProduct creates a draft product owned by the calling user.
func (s *service) CreateProduct(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	product := &models.Product{
		Name:          name,
		Description:   input.Description,
		BrandID:       input.BrandID,
		SubCategoryID: input.SubCategoryID,
		Status:        enums.ProductStatusDraft,
		CreatedBy:     userID,
		SellerID:      userID,
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := ensureTaxonomy(ctx, txRepo, &input.BrandID, &input.SubCategoryID); err != nil {
			return err
		}
		if err := ensureNameFree(ctx, tx, name, nil); err != nil {
			return err
		}
		slug, err := slugs.Unique(ctx, tx, name, slugs.ProductSlug, nil)
		if err != nil {
			return db.StoreError(err, "generate product slug")
		}
		product.Slug = slug

		if err := txRepo.CreateProduct(ctx, product); err != nil {
			return db.StoreError(err, "insert product")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return NewProductDTO(product), nil
}

// UpdateProduct applies the patch and regenerates the slug on rename.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var updated *models.Product
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			return notFound(err, "product")
		}

		// status is owned by UpdateStatus and never written here
		var changed []string
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			if name != product.Name {
				if err := ensureNameFree(ctx, tx, name, &product.ID); err != nil {
					return err
				}
				slug, err := slugs.Unique(ctx, tx, name, slugs.ProductSlug, &product.ID)
				if err != nil {
					return db.StoreError(err, "generate product slug")
				}
				product.Name = name
				product.Slug = slug
				changed = append(changed, "name", "slug")
			}
		}
		if input.Description != nil {
			product.Description = input.Description
			changed = append(changed, "description")
		}
		if err := ensureTaxonomy(ctx, txRepo, input.BrandID, input.SubCategoryID); err != nil {
			return err
		}
		if input.BrandID != nil {
			product.BrandID = *input.BrandID
			changed = append(changed, "brand_id")
		}
		if input.SubCategoryID != nil {
			product.SubCategoryID = *input.SubCategoryID
			changed = append(changed, "sub_category_id")
		}

		if err := txRepo.UpdateProduct(ctx, product, changed...); err != nil {
			return db.StoreError(err, "update product")
		}
		updated = product
		return nil
	}); err != nil {
		return nil, err
	}

	return NewProductDTO(updated), nil
}

func (s *service) UpdateStatus(ctx context.Context, productID uuid.UUID, status enums.ProductStatus) (*ProductDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}

	var updated *models.Product
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			return notFound(err, "product")
		}
		product.Status = status
		if err := txRepo.UpdateProduct(ctx, product, "status"); err != nil {
			return db.StoreError(err, "update product status")
		}
		updated = product
		return nil
	}); err != nil {
		return nil, err
	}
	return NewProductDTO(updated), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	affected, err := s.repo.DeleteProduct(ctx, productID)
	if err != nil {
		return db.StoreError(err, "delete product")
	}
	if affected == 0 {
		return pkgerrors.NotFound("product")
	}
	return nil
}

// ListProducts filters products and resolves each row's price and cover
// image from its candidate default variant. Variants and images are each
// loaded with a single query for the whole page.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (pagination.Page[ProductSummary], error) {
	filters := input.Filters
	if filters.MinPrice != nil && filters.MaxPrice != nil && filters.MinPrice.GreaterThan(*filters.MaxPrice) {
		return pagination.Page[ProductSummary]{}, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}

	query := productListQuery{Filters: filters, Privileged: input.Privileged}
	if input.Pagination.Enabled() {
		query.Limit = input.Pagination.NormalizedLimit()
		query.Offset = input.Pagination.Offset()
	}

	records, total, err := s.repo.ListProductSummaries(ctx, query)
	if err != nil {
		return pagination.Page[ProductSummary]{}, db.StoreError(err, "list products")
	}
	if len(records) == 0 {
		return pagination.NewPage([]ProductSummary{}, input.Pagination, total), nil
	}

	productIDs := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		productIDs = append(productIDs, record.ID)
	}

	defaults, err := s.repo.CandidateDefaults(ctx, productIDs)
	if err != nil {
		return pagination.Page[ProductSummary]{}, db.StoreError(err, "load default variants")
	}

	owners := images.Owners{}
	owners.Add(enums.ModuleTypeProduct, productIDs...)
	for _, variant := range defaults {
		owners.Add(enums.ModuleTypeVariant, variant.ID)
	}
	primaries, err := s.images.FindForOwners(ctx, owners, enums.ImageTypePrimary)
	if err != nil {
		return pagination.Page[ProductSummary]{}, db.StoreError(err, "load primary images")
	}

	productImage := make(map[uuid.UUID]string)
	variantImage := make(map[uuid.UUID]string)
	for _, img := range primaries {
		target := productImage
		if img.ModuleType == enums.ModuleTypeVariant {
			target = variantImage
		}
		if _, ok := target[img.ModuleID]; !ok {
			target[img.ModuleID] = img.URL
		}
	}

	summaries := make([]ProductSummary, 0, len(records))
	for _, record := range records {
		summary := record.toSummary()
		variant, hasVariant := defaults[record.ID]
		if url, ok := productImage[record.ID]; ok {
			summary.CoverImage = &url
		} else if hasVariant {
			if url, ok := variantImage[variant.ID]; ok {
				summary.CoverImage = &url
			}
		}
		if hasVariant {
			summary.Price = decimalPtr(variant.Price)
			if variant.MRP.Valid {
				summary.MRP = decimalPtr(variant.MRP.Decimal)
			}
		}
		summaries = append(summaries, summary)
	}

	return pagination.NewPage(summaries, input.Pagination, total), nil
}

// GetProductDetail returns the product with variants, images and the
// resolved default variant. It never writes; promotion happens on the
// variant detail path.
func (s *service) GetProductDetail(ctx context.Context, productID uuid.UUID) (*ProductDetailDTO, error) {
	product, err := s.repo.GetProductDetail(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product")
	}

	owners := images.Owners{}
	owners.Add(enums.ModuleTypeProduct, product.ID)
	for _, variant := range product.Variants {
		owners.Add(enums.ModuleTypeVariant, variant.ID)
	}
	rows, err := s.images.FindForOwners(ctx, owners)
	if err != nil {
		return nil, db.StoreError(err, "load product images")
	}

	productImages := []images.ImageDTO{}
	byVariant := make(map[uuid.UUID][]images.ImageDTO)
	for i := range rows {
		dto := images.NewImageDTO(&rows[i])
		if rows[i].ModuleType == enums.ModuleTypeProduct {
			productImages = append(productImages, dto)
			continue
		}
		byVariant[rows[i].ModuleID] = append(byVariant[rows[i].ModuleID], dto)
	}

	detail := &ProductDetailDTO{
		ProductDTO: *NewProductDTO(product),
		Images:     productImages,
		Variants:   make([]variants.VariantDTO, 0, len(product.Variants)),
	}
	if product.Brand != nil {
		detail.Brand = &TaxonomyRef{ID: product.Brand.ID, Name: product.Brand.Name, Slug: product.Brand.Slug}
	}
	if product.SubCategory != nil {
		detail.SubCategory = &TaxonomyRef{ID: product.SubCategory.ID, Name: product.SubCategory.Name, Slug: product.SubCategory.Slug}
	}
	for i := range product.Variants {
		dto := variants.NewVariantDTO(&product.Variants[i])
		dto.Images = byVariant[product.Variants[i].ID]
		if dto.Images == nil {
			dto.Images = []images.ImageDTO{}
		}
		detail.Variants = append(detail.Variants, dto)
	}
	if idx := pickDefault(product.Variants); idx >= 0 {
		detail.DefaultVariant = &detail.Variants[idx]
	}
	return detail, nil
}

// pickDefault prefers the flagged default if it is active, then the oldest
// active variant, then the first variant. rows are ordered oldest first.
func pickDefault(rows []models.ProductVariant) int {
	for i := range rows {
		if rows[i].IsDefault && rows[i].IsActive {
			return i
		}
	}
	for i := range rows {
		if rows[i].IsActive {
			return i
		}
	}
	if len(rows) > 0 {
		return 0
	}
	return -1
}

func ensureTaxonomy(ctx context.Context, repo *Repository, brandID, subCategoryID *uuid.UUID) error {
	if brandID != nil {
		if _, err := repo.FindBrand(ctx, *brandID); err != nil {
			return notFound(err, "brand")
		}
	}
	if subCategoryID != nil {
		if _, err := repo.FindSubCategory(ctx, *subCategoryID); err != nil {
			return notFound(err, "sub-category")
		}
	}
	return nil
}

func ensureNameFree(ctx context.Context, tx *gorm.DB, name string, excludeID *uuid.UUID) error {
	taken, err := slugs.Taken(ctx, tx, slugs.ProductName, name, excludeID)
	if err != nil {
		return db.StoreError(err, "check product name")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "product with this name already exists")
	}
	return nil
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(entity)
	}
	return db.StoreError(err, "load "+entity)
}
