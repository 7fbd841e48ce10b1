package sections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/slugs"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

// Service curates sections and resolves them for storefront reads.
type Service interface {
	CreateSection(ctx context.Context, input CreateSectionInput) (*SectionDTO, error)
	ListSections(ctx context.Context) ([]SectionDTO, error)
	GetSection(ctx context.Context, id uuid.UUID) (*SectionDTO, error)
	ResolveSection(ctx context.Context, key string) (*ResolvedSectionDTO, error)
	UpdateSection(ctx context.Context, id uuid.UUID, input UpdateSectionInput) (*SectionDTO, error)
	DeleteSection(ctx context.Context, id uuid.UUID) error

	CreateItem(ctx context.Context, sectionID uuid.UUID, input CreateItemInput) (*SectionItemDTO, error)
	ListItems(ctx context.Context, sectionID uuid.UUID, includeInactive bool) ([]SectionItemDTO, error)
	GetItem(ctx context.Context, id uuid.UUID) (*SectionItemDTO, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*SectionItemDTO, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

type CreateSectionInput struct {
	Name     string
	Key      string
	IsActive *bool
}

type UpdateSectionInput struct {
	Name     *string
	Key      *string
	IsActive *bool
}

// CreateItemInput references exactly one of ProductID or VariantID.
type CreateItemInput struct {
	ProductID *uuid.UUID
	VariantID *uuid.UUID
	SortOrder *int
	IsActive  *bool
}

type UpdateItemInput struct {
	SortOrder *int
	IsActive  *bool
}

type SectionDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResolvedSectionDTO is a section with its live items.
type ResolvedSectionDTO struct {
	SectionDTO
	Items []SectionItemDTO `json:"items"`
}

type ProductRef struct {
	ID     uuid.UUID           `json:"id"`
	Name   string              `json:"name"`
	Slug   string              `json:"slug"`
	Status enums.ProductStatus `json:"status"`
}

type VariantRef struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"isActive"`
	Product   *ProductRef     `json:"product,omitempty"`
}

// SectionItemDTO carries the referenced product or variant when it still
// exists. Live is false when the reference is deleted or not active.
type SectionItemDTO struct {
	ID        uuid.UUID   `json:"id"`
	SectionID uuid.UUID   `json:"sectionId"`
	ProductID *uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID  `json:"variantId"`
	SortOrder int         `json:"sortOrder"`
	IsActive  bool        `json:"isActive"`
	Live      bool        `json:"live"`
	Product   *ProductRef `json:"product,omitempty"`
	Variant   *VariantRef `json:"variant,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func newSectionDTO(s *models.Section) SectionDTO {
	return SectionDTO{
		ID:        s.ID,
		Name:      s.Name,
		Key:       s.Key,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func newItemDTO(item *models.SectionItem) SectionItemDTO {
	return SectionItemDTO{
		ID:        item.ID,
		SectionID: item.SectionID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		SortOrder: item.SortOrder,
		IsActive:  item.IsActive,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func newProductRef(p *models.Product) *ProductRef {
	return &ProductRef{ID: p.ID, Name: p.Name, Slug: p.Slug, Status: p.Status}
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
}

// NewService wires the section service.
func NewService(repo *Repository, dbClient db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("section repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) CreateSection(ctx context.Context, input CreateSectionInput) (*SectionDTO, error) {
	name := strings.TrimSpace(input.Name)
	key := strings.TrimSpace(input.Key)
	if name == "" || key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and key are required")
	}

	section := &models.Section{Name: name, Key: key, IsActive: true}
	if input.IsActive != nil {
		section.IsActive = *input.IsActive
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := ensureKeyFree(ctx, tx, key, nil); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, section); err != nil {
			return db.StoreError(err, "insert section")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newSectionDTO(section)
	return &dto, nil
}

func (s *service) ListSections(ctx context.Context) ([]SectionDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.StoreError(err, "list sections")
	}
	out := make([]SectionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, newSectionDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) GetSection(ctx context.Context, id uuid.UUID) (*SectionDTO, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "section")
	}
	dto := newSectionDTO(section)
	return &dto, nil
}

// ResolveSection returns an active section and the items whose product or
// variant is still live, in display order.
func (s *service) ResolveSection(ctx context.Context, key string) (*ResolvedSectionDTO, error) {
	section, err := s.repo.FindActiveByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		return nil, notFound(err, "section")
	}
	items, err := s.resolveItems(ctx, section.ID, false)
	if err != nil {
		return nil, err
	}
	return &ResolvedSectionDTO{SectionDTO: newSectionDTO(section), Items: items}, nil
}

func (s *service) UpdateSection(ctx context.Context, id uuid.UUID, input UpdateSectionInput) (*SectionDTO, error) {
	var updated *models.Section
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		section, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "section")
		}
		var changed []string
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			section.Name = name
			changed = append(changed, "name")
		}
		if input.Key != nil {
			key := strings.TrimSpace(*input.Key)
			if key == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "key cannot be empty")
			}
			if key != section.Key {
				if err := ensureKeyFree(ctx, tx, key, &section.ID); err != nil {
					return err
				}
				section.Key = key
				changed = append(changed, "key")
			}
		}
		if input.IsActive != nil {
			section.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}
		if err := txRepo.Update(ctx, section, changed...); err != nil {
			return db.StoreError(err, "update section")
		}
		updated = section
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newSectionDTO(updated)
	return &dto, nil
}

func (s *service) DeleteSection(ctx context.Context, id uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return db.StoreError(err, "delete section")
		}
		if affected == 0 {
			return pkgerrors.NotFound("section")
		}
		return nil
	})
}

func (s *service) CreateItem(ctx context.Context, sectionID uuid.UUID, input CreateItemInput) (*SectionItemDTO, error) {
	hasProduct := input.ProductID != nil && *input.ProductID != uuid.Nil
	hasVariant := input.VariantID != nil && *input.VariantID != uuid.Nil
	switch {
	case !hasProduct && !hasVariant:
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "either productId or variantId must be provided")
	case hasProduct && hasVariant:
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "cannot provide both productId and variantId")
	}

	item := &models.SectionItem{SectionID: sectionID, IsActive: true}
	if input.SortOrder != nil {
		if *input.SortOrder < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sortOrder must be greater than or equal to 0")
		}
		item.SortOrder = *input.SortOrder
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}

	if _, err := s.repo.FindByID(ctx, sectionID); err != nil {
		return nil, notFound(err, "section")
	}

	if hasProduct {
		product, err := s.repo.FindProduct(ctx, *input.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.StoreError(err, "load product")
		}
		if product == nil || product.Status != enums.ProductStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found or not active")
		}
		item.ProductID = &product.ID
	} else {
		variant, err := s.repo.FindVariant(ctx, *input.VariantID)
		if err != nil {
			return nil, notFound(err, "variant")
		}
		product, err := s.repo.FindProduct(ctx, variant.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.StoreError(err, "load product")
		}
		if product == nil || product.Status != enums.ProductStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "variant belongs to an inactive or deleted product")
		}
		item.VariantID = &variant.ID
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, db.StoreError(err, "insert section item")
	}
	dto := newItemDTO(item)
	dto.Live = true
	return &dto, nil
}

// ListItems returns the admin view of a section's items. With
// includeInactive every row is returned and Live marks the stale ones.
func (s *service) ListItems(ctx context.Context, sectionID uuid.UUID, includeInactive bool) ([]SectionItemDTO, error) {
	if _, err := s.repo.FindByID(ctx, sectionID); err != nil {
		return nil, notFound(err, "section")
	}
	return s.resolveItems(ctx, sectionID, includeInactive)
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*SectionItemDTO, error) {
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		return nil, notFound(err, "section item")
	}
	resolved, err := s.attach(ctx, []models.SectionItem{*item})
	if err != nil {
		return nil, err
	}
	return &resolved[0], nil
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*SectionItemDTO, error) {
	if input.SortOrder != nil && *input.SortOrder < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sortOrder must be greater than or equal to 0")
	}
	var updated *models.SectionItem
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindItem(ctx, id)
		if err != nil {
			return notFound(err, "section item")
		}
		var changed []string
		if input.SortOrder != nil {
			item.SortOrder = *input.SortOrder
			changed = append(changed, "sort_order")
		}
		if input.IsActive != nil {
			item.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}
		if err := txRepo.UpdateItem(ctx, item, changed...); err != nil {
			return db.StoreError(err, "update section item")
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newItemDTO(updated)
	return &dto, nil
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteItem(ctx, id)
	if err != nil {
		return db.StoreError(err, "delete section item")
	}
	if affected == 0 {
		return pkgerrors.NotFound("section item")
	}
	return nil
}

// resolveItems loads the section's items and drops stale references unless
// the caller asked for the full admin view. Rows are never removed.
func (s *service) resolveItems(ctx context.Context, sectionID uuid.UUID, includeInactive bool) ([]SectionItemDTO, error) {
	rows, err := s.repo.ListItems(ctx, sectionID, includeInactive)
	if err != nil {
		return nil, db.StoreError(err, "list section items")
	}
	resolved, err := s.attach(ctx, rows)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return resolved, nil
	}
	live := make([]SectionItemDTO, 0, len(resolved))
	for _, item := range resolved {
		if item.Live {
			live = append(live, item)
		}
	}
	return live, nil
}

// attach batch-loads referenced variants and products and computes liveness.
func (s *service) attach(ctx context.Context, rows []models.SectionItem) ([]SectionItemDTO, error) {
	variantIDs := []uuid.UUID{}
	productIDs := []uuid.UUID{}
	for _, row := range rows {
		if row.VariantID != nil {
			variantIDs = append(variantIDs, *row.VariantID)
		}
		if row.ProductID != nil {
			productIDs = append(productIDs, *row.ProductID)
		}
	}

	variantRows, err := s.repo.FindVariants(ctx, variantIDs)
	if err != nil {
		return nil, db.StoreError(err, "load section variants")
	}
	variantsByID := make(map[uuid.UUID]models.ProductVariant, len(variantRows))
	for _, v := range variantRows {
		variantsByID[v.ID] = v
		productIDs = append(productIDs, v.ProductID)
	}

	productRows, err := s.repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, db.StoreError(err, "load section products")
	}
	productsByID := make(map[uuid.UUID]models.Product, len(productRows))
	for _, p := range productRows {
		productsByID[p.ID] = p
	}

	out := make([]SectionItemDTO, 0, len(rows))
	for i := range rows {
		dto := newItemDTO(&rows[i])
		switch {
		case rows[i].ProductID != nil:
			if p, ok := productsByID[*rows[i].ProductID]; ok {
				dto.Product = newProductRef(&p)
				dto.Live = p.Status == enums.ProductStatusActive
			}
		case rows[i].VariantID != nil:
			if v, ok := variantsByID[*rows[i].VariantID]; ok {
				ref := &VariantRef{ID: v.ID, ProductID: v.ProductID, SKU: v.SKU, Price: v.Price, IsActive: v.IsActive}
				if p, ok := productsByID[v.ProductID]; ok {
					ref.Product = newProductRef(&p)
					dto.Live = p.Status == enums.ProductStatusActive
				}
				dto.Variant = ref
			}
		}
		out = append(out, dto)
	}
	return out, nil
}

func ensureKeyFree(ctx context.Context, tx *gorm.DB, key string, excludeID *uuid.UUID) error {
	taken, err := slugs.Taken(ctx, tx, slugs.SectionKey, key, excludeID)
	if err != nil {
		return db.StoreError(err, "check section key")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "section with this key already exists")
	}
	return nil
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(entity)
	}
	return db.StoreError(err, "load "+entity)
}
