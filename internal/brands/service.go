package brands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/slugs"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// Service exposes brand management operations.
type Service interface {
	CreateBrand(ctx context.Context, input CreateBrandInput) (*BrandDTO, error)
	ListBrands(ctx context.Context, input ListBrandsInput) (pagination.Page[BrandDTO], error)
	GetBrand(ctx context.Context, id uuid.UUID) (*BrandDTO, error)
	UpdateBrand(ctx context.Context, id uuid.UUID, input UpdateBrandInput) (*BrandDTO, error)
	DeleteBrand(ctx context.Context, id uuid.UUID) error
}

// CreateBrandInput holds the validated payload to create a brand.
type CreateBrandInput struct {
	Name     string
	Slug     *string
	IsActive *bool
}

// UpdateBrandInput holds optional mutation values for a brand.
type UpdateBrandInput struct {
	Name     *string
	Slug     *string
	IsActive *bool
}

// ListBrandsInput filters the brand listing.
type ListBrandsInput struct {
	Search string
	Page   pagination.Params
}

// BrandDTO is the API representation of a brand.
type BrandDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newBrandDTO(b *models.Brand) BrandDTO {
	return BrandDTO{
		ID:        b.ID,
		Name:      b.Name,
		Slug:      b.Slug,
		IsActive:  b.IsActive,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
}

// NewService constructs a brand service instance.
func NewService(repo *Repository, dbClient db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("brand repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) CreateBrand(ctx context.Context, input CreateBrandInput) (*BrandDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	brand := &models.Brand{Name: name, IsActive: true}
	if input.IsActive != nil {
		brand.IsActive = *input.IsActive
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		taken, err := slugs.Taken(ctx, tx, slugs.BrandName, name, nil)
		if err != nil {
			return db.StoreError(err, "check brand name")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "brand with this name already exists")
		}

		slug, err := resolveSlug(ctx, tx, input.Slug, name, nil)
		if err != nil {
			return err
		}
		brand.Slug = slug

		if err := txRepo.Create(ctx, brand); err != nil {
			return db.StoreError(err, "insert brand")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := newBrandDTO(brand)
	return &dto, nil
}

func (s *service) ListBrands(ctx context.Context, input ListBrandsInput) (pagination.Page[BrandDTO], error) {
	rows, total, err := s.repo.List(ctx, input.Search, input.Page)
	if err != nil {
		return pagination.Page[BrandDTO]{}, db.StoreError(err, "list brands")
	}
	items := make([]BrandDTO, 0, len(rows))
	for i := range rows {
		items = append(items, newBrandDTO(&rows[i]))
	}
	return pagination.NewPage(items, input.Page, total), nil
}

func (s *service) GetBrand(ctx context.Context, id uuid.UUID) (*BrandDTO, error) {
	brand, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	dto := newBrandDTO(brand)
	return &dto, nil
}

func (s *service) UpdateBrand(ctx context.Context, id uuid.UUID, input UpdateBrandInput) (*BrandDTO, error) {
	var updated *models.Brand
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		brand, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return notFound(err)
		}

		var changed []string
		nameChanged := false
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			if name != brand.Name {
				taken, err := slugs.Taken(ctx, tx, slugs.BrandName, name, &brand.ID)
				if err != nil {
					return db.StoreError(err, "check brand name")
				}
				if taken {
					return pkgerrors.New(pkgerrors.CodeConflict, "brand with this name already exists")
				}
				brand.Name = name
				nameChanged = true
				changed = append(changed, "name")
			}
		}

		if input.Slug != nil || nameChanged {
			slug, err := resolveSlug(ctx, tx, input.Slug, brand.Name, &brand.ID)
			if err != nil {
				return err
			}
			brand.Slug = slug
			changed = append(changed, "slug")
		}
		if input.IsActive != nil {
			brand.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}

		if err := txRepo.Update(ctx, brand, changed...); err != nil {
			return db.StoreError(err, "update brand")
		}
		updated = brand
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := newBrandDTO(updated)
	return &dto, nil
}

func (s *service) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return db.StoreError(err, "delete brand")
	}
	if affected == 0 {
		return pkgerrors.NotFound("brand")
	}
	return nil
}

// resolveSlug honours an explicit slug (rejecting collisions) or derives a
// free one from name.
func resolveSlug(ctx context.Context, tx *gorm.DB, explicit *string, name string, excludeID *uuid.UUID) (string, error) {
	if explicit != nil && strings.TrimSpace(*explicit) != "" {
		slug := strings.TrimSpace(*explicit)
		taken, err := slugs.Taken(ctx, tx, slugs.BrandSlug, slug, excludeID)
		if err != nil {
			return "", db.StoreError(err, "check brand slug")
		}
		if taken {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "brand with this slug already exists")
		}
		return slug, nil
	}
	slug, err := slugs.Unique(ctx, tx, name, slugs.BrandSlug, excludeID)
	if err != nil {
		return "", db.StoreError(err, "generate brand slug")
	}
	return slug, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("brand")
	}
	return db.StoreError(err, "load brand")
}
