package variants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/images"
	"github.com/angelmondragon/catalog-backend/internal/slugs"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
)

// Service manages product variants and the one-default-per-product rule.
type Service interface {
	CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*VariantDTO, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]VariantDTO, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error)
	UpdateVariant(ctx context.Context, id uuid.UUID, input UpdateVariantInput) (*VariantDTO, error)
	DeleteVariant(ctx context.Context, id uuid.UUID) error
	SetDefault(ctx context.Context, variantID uuid.UUID) (*VariantDTO, error)
	GetDefaultOrPromote(ctx context.Context, productID uuid.UUID) (*VariantDTO, error)
	GetVariantDetail(ctx context.Context, productID, variantID *uuid.UUID) (*VariantDetail, error)
}

type CreateVariantInput struct {
	SKU        string
	Attributes map[string]any
	Price      decimal.Decimal
	MRP        *decimal.Decimal
	Stock      *int
	IsActive   *bool
	// IsDefault makes the new variant the product's only default.
	IsDefault *bool
}

type UpdateVariantInput struct {
	SKU        *string
	Attributes map[string]any
	Price      *decimal.Decimal
	MRP        *decimal.Decimal
	Stock      *int
	IsActive   *bool
}

// VariantDTO is the API representation of a variant.
type VariantDTO struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"productId"`
	SKU        string            `json:"sku"`
	Attributes map[string]any    `json:"attributes"`
	Price      decimal.Decimal   `json:"price"`
	MRP        *decimal.Decimal  `json:"mrp"`
	Stock      int               `json:"stock"`
	IsActive   bool              `json:"isActive"`
	IsDefault  bool              `json:"isDefault"`
	Images     []images.ImageDTO `json:"images,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// NewVariantDTO maps a stored variant.
func NewVariantDTO(v *models.ProductVariant) VariantDTO {
	attrs := map[string]any(v.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	dto := VariantDTO{
		ID:         v.ID,
		ProductID:  v.ProductID,
		SKU:        v.SKU,
		Attributes: attrs,
		Price:      v.Price,
		Stock:      v.Stock,
		IsActive:   v.IsActive,
		IsDefault:  v.IsDefault,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
	if v.MRP.Valid {
		mrp := v.MRP.Decimal
		dto.MRP = &mrp
	}
	return dto
}

// Ref is a compact id/name pair for related taxonomy.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// VariantDetail is the product context used when switching variants.
type VariantDetail struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	Brand           *Ref              `json:"brand"`
	SubCategory     *Ref              `json:"subCategory"`
	Images          []images.ImageDTO `json:"images"`
	Variants        []VariantDTO      `json:"variants"`
	SelectedVariant *VariantDTO       `json:"selectedVariant"`
}

type imageFinder interface {
	FindForOwners(ctx context.Context, owners images.Owners, types ...enums.ImageType) ([]models.Image, error)
}

type promotionRecorder interface {
	IncDefaultPromotion()
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	images   imageFinder
	metrics  promotionRecorder
}

// NewService constructs a variant service. A nil recorder disables metrics.
func NewService(repo *Repository, dbClient db.TxRunner, imageRepo imageFinder, recorder promotionRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("variant repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if imageRepo == nil {
		return nil, fmt.Errorf("image repository required")
	}
	if recorder == nil {
		recorder = (*metrics.CatalogMetrics)(nil)
	}
	return &service{repo: repo, dbClient: dbClient, images: imageRepo, metrics: recorder}, nil
}

func (s *service) CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*VariantDTO, error) {
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if err := validateAmounts(&input.Price, input.MRP, input.Stock); err != nil {
		return nil, err
	}

	variant := &models.ProductVariant{
		ProductID:  productID,
		SKU:        sku,
		Attributes: datatypes.JSONMap(input.Attributes),
		Price:      input.Price,
		IsActive:   true,
	}
	if variant.Attributes == nil {
		variant.Attributes = datatypes.JSONMap{}
	}
	if input.MRP != nil {
		variant.MRP = decimal.NewNullDecimal(*input.MRP)
	}
	if input.Stock != nil {
		variant.Stock = *input.Stock
	}
	if input.IsActive != nil {
		variant.IsActive = *input.IsActive
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		makeDefault := input.IsDefault != nil && *input.IsDefault
		if makeDefault {
			if _, err := txRepo.LockProduct(ctx, productID); err != nil {
				return notFound(err, "product")
			}
		} else if _, err := txRepo.FindProduct(ctx, productID, false); err != nil {
			return notFound(err, "product")
		}
		if err := ensureSKUFree(ctx, tx, sku, nil); err != nil {
			return err
		}
		if err := txRepo.Create(ctx, variant); err != nil {
			return db.StoreError(err, "insert variant")
		}
		if !makeDefault {
			return nil
		}
		if err := txRepo.MarkDefault(ctx, productID, variant.ID); err != nil {
			return db.StoreError(err, "mark default variant")
		}
		variant.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewVariantDTO(variant)
	return &dto, nil
}

func (s *service) ListVariants(ctx context.Context, productID uuid.UUID) ([]VariantDTO, error) {
	if _, err := s.repo.FindProduct(ctx, productID, false); err != nil {
		return nil, notFound(err, "product")
	}
	rows, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, db.StoreError(err, "list variants")
	}
	out := make([]VariantDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewVariantDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) GetVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error) {
	variant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "variant")
	}
	dto := NewVariantDTO(variant)
	return &dto, nil
}

func (s *service) UpdateVariant(ctx context.Context, id uuid.UUID, input UpdateVariantInput) (*VariantDTO, error) {
	if err := validateAmounts(input.Price, input.MRP, input.Stock); err != nil {
		return nil, err
	}

	var variant *models.ProductVariant
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "variant")
		}
		// default changes hold the same lock, so the re-read below is current
		if _, err := txRepo.LockProduct(ctx, current.ProductID); err != nil {
			return notFound(err, "product")
		}
		variant, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "variant")
		}

		var changed []string
		if input.SKU != nil {
			sku := strings.TrimSpace(*input.SKU)
			if sku == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "sku cannot be empty")
			}
			if sku != variant.SKU {
				if err := ensureSKUFree(ctx, tx, sku, &variant.ID); err != nil {
					return err
				}
				variant.SKU = sku
				changed = append(changed, "sku")
			}
		}
		if input.Attributes != nil {
			variant.Attributes = datatypes.JSONMap(input.Attributes)
			changed = append(changed, "attributes")
		}
		if input.Price != nil {
			variant.Price = *input.Price
			changed = append(changed, "price")
		}
		if input.MRP != nil {
			variant.MRP = decimal.NewNullDecimal(*input.MRP)
			changed = append(changed, "mrp")
		}
		if input.Stock != nil {
			variant.Stock = *input.Stock
			changed = append(changed, "stock")
		}
		if input.IsActive != nil {
			variant.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}

		if err := txRepo.Update(ctx, variant, changed...); err != nil {
			return db.StoreError(err, "update variant")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewVariantDTO(variant)
	return &dto, nil
}

func (s *service) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return db.StoreError(err, "delete variant")
	}
	if affected == 0 {
		return pkgerrors.NotFound("variant")
	}
	return nil
}

// SetDefault makes variantID the only default of its product. The clear and
// the set commit together, so readers never see zero or two defaults.
func (s *service) SetDefault(ctx context.Context, variantID uuid.UUID) (*VariantDTO, error) {
	var variant *models.ProductVariant
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		target, err := txRepo.FindByID(ctx, variantID)
		if err != nil {
			return notFound(err, "variant")
		}
		if _, err := txRepo.LockProduct(ctx, target.ProductID); err != nil {
			return notFound(err, "product")
		}
		if err := txRepo.MarkDefault(ctx, target.ProductID, target.ID); err != nil {
			return notFound(err, "variant")
		}
		variant, err = txRepo.FindByID(ctx, variantID)
		if err != nil {
			return db.StoreError(err, "reload variant")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewVariantDTO(variant)
	return &dto, nil
}

// GetDefaultOrPromote returns the product's default variant, promoting the
// oldest active variant when none is flagged. The product row lock makes
// concurrent promoters agree on the same variant.
func (s *service) GetDefaultOrPromote(ctx context.Context, productID uuid.UUID) (*VariantDTO, error) {
	variant, err := s.defaultOrPromote(ctx, productID)
	if err != nil {
		return nil, err
	}
	dto := NewVariantDTO(variant)
	return &dto, nil
}

func (s *service) defaultOrPromote(ctx context.Context, productID uuid.UUID) (*models.ProductVariant, error) {
	if _, err := s.repo.FindProduct(ctx, productID, false); err != nil {
		return nil, notFound(err, "product")
	}
	current, err := s.repo.FindDefault(ctx, productID)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, db.StoreError(err, "load default variant")
	}

	// no default yet: promote under the product lock and re-check, since a
	// concurrent caller may have promoted in the meantime
	var (
		variant  *models.ProductVariant
		promoted bool
	)
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.LockProduct(ctx, productID); err != nil {
			return notFound(err, "product")
		}

		current, err := txRepo.FindDefault(ctx, productID)
		if err == nil {
			variant = current
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return db.StoreError(err, "load default variant")
		}

		candidate, err := txRepo.OldestActive(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no active variants found for this product")
			}
			return db.StoreError(err, "load active variant")
		}
		if err := txRepo.MarkDefault(ctx, productID, candidate.ID); err != nil {
			return db.StoreError(err, "promote default variant")
		}
		candidate.IsDefault = true
		variant = candidate
		promoted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if promoted {
		s.metrics.IncDefaultPromotion()
	}
	return variant, nil
}

// GetVariantDetail resolves the selected variant by id, or the product's
// default when only productID is given, and returns it with product context.
func (s *service) GetVariantDetail(ctx context.Context, productID, variantID *uuid.UUID) (*VariantDetail, error) {
	var selected *models.ProductVariant
	switch {
	case variantID != nil:
		v, err := s.repo.FindByID(ctx, *variantID)
		if err != nil {
			return nil, notFound(err, "variant")
		}
		selected = v
	case productID != nil:
		v, err := s.defaultOrPromote(ctx, *productID)
		if err != nil {
			return nil, err
		}
		selected = v
	default:
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "either productId or variantId must be provided")
	}

	product, err := s.repo.FindProduct(ctx, selected.ProductID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("variant")
		}
		return nil, db.StoreError(err, "load product")
	}
	rows, err := s.repo.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, db.StoreError(err, "list variants")
	}

	owners := images.Owners{}
	owners.Add(enums.ModuleTypeProduct, product.ID)
	for i := range rows {
		owners.Add(enums.ModuleTypeVariant, rows[i].ID)
	}
	imgs, err := s.images.FindForOwners(ctx, owners)
	if err != nil {
		return nil, db.StoreError(err, "load images")
	}

	productImages := []images.ImageDTO{}
	byVariant := make(map[uuid.UUID][]images.ImageDTO)
	for i := range imgs {
		dto := images.NewImageDTO(&imgs[i])
		if imgs[i].ModuleType == enums.ModuleTypeProduct {
			productImages = append(productImages, dto)
			continue
		}
		byVariant[imgs[i].ModuleID] = append(byVariant[imgs[i].ModuleID], dto)
	}

	detail := &VariantDetail{
		ID:       product.ID,
		Name:     product.Name,
		Slug:     product.Slug,
		Images:   productImages,
		Variants: make([]VariantDTO, 0, len(rows)),
	}
	if product.Brand != nil {
		detail.Brand = &Ref{ID: product.Brand.ID, Name: product.Brand.Name}
	}
	if product.SubCategory != nil {
		detail.SubCategory = &Ref{ID: product.SubCategory.ID, Name: product.SubCategory.Name}
	}
	for i := range rows {
		dto := NewVariantDTO(&rows[i])
		dto.Images = byVariant[rows[i].ID]
		if dto.Images == nil {
			dto.Images = []images.ImageDTO{}
		}
		detail.Variants = append(detail.Variants, dto)
		if rows[i].ID == selected.ID {
			detail.SelectedVariant = &detail.Variants[len(detail.Variants)-1]
		}
	}
	return detail, nil
}

func validateAmounts(price, mrp *decimal.Decimal, stock *int) error {
	if price != nil && price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than or equal to 0")
	}
	if mrp != nil && mrp.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "mrp must be greater than or equal to 0")
	}
	if stock != nil && *stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be greater than or equal to 0")
	}
	return nil
}

func ensureSKUFree(ctx context.Context, tx *gorm.DB, sku string, excludeID *uuid.UUID) error {
	taken, err := slugs.Taken(ctx, tx, slugs.VariantSKU, sku, excludeID)
	if err != nil {
		return db.StoreError(err, "check variant sku")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "variant with this SKU already exists")
	}
	return nil
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(entity)
	}
	return db.StoreError(err, "load "+entity)
}
