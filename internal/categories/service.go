package categories

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

// Service exposes the category taxonomy.
type Service interface {
	CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context, search string, page pagination.Params) (pagination.Page[CategoryDTO], error)
	GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryPatch) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateSubCategory(ctx context.Context, input SubCategoryInput) (*SubCategoryDTO, error)
	ListSubCategories(ctx context.Context, filter SubCategoryFilter, page pagination.Params) (pagination.Page[SubCategoryDTO], error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]SubCategoryDTO, error)
	GetSubCategory(ctx context.Context, id uuid.UUID) (*SubCategoryDTO, error)
	UpdateSubCategory(ctx context.Context, id uuid.UUID, input SubCategoryPatch) (*SubCategoryDTO, error)
	DeleteSubCategory(ctx context.Context, id uuid.UUID) error
}

type CategoryInput struct {
	Name     string
	Slug     *string
	IsActive *bool
}

type CategoryPatch struct {
	Name     *string
	Slug     *string
	IsActive *bool
}

type SubCategoryInput struct {
	CategoryID uuid.UUID
	Name       string
	Slug       *string
	IsActive   *bool
}

type SubCategoryPatch struct {
	CategoryID *uuid.UUID
	Name       *string
	Slug       *string
	IsActive   *bool
}

type CategoryDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SubCategoryDTO struct {
	ID         uuid.UUID    `json:"id"`
	CategoryID uuid.UUID    `json:"categoryId"`
	Name       string       `json:"name"`
	Slug       string       `json:"slug"`
	IsActive   bool         `json:"isActive"`
	Category   *CategoryDTO `json:"category,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func newCategoryDTO(c *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newSubCategoryDTO(s *models.SubCategory) SubCategoryDTO {
	dto := SubCategoryDTO{
		ID:         s.ID,
		CategoryID: s.CategoryID,
		Name:       s.Name,
		Slug:       s.Slug,
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.Category != nil {
		parent := newCategoryDTO(s.Category)
		dto.Category = &parent
	}
	return dto
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
}

// NewService constructs a category service instance.
func NewService(repo *Repository, dbClient db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category := &models.Category{Name: name, IsActive: boolOr(input.IsActive, true)}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := ensureFree(ctx, tx, slugs.CategoryName, name, nil, "category with this name already exists"); err != nil {
			return err
		}
		slug, err := resolveSlug(ctx, tx, slugs.CategorySlug, input.Slug, name, nil, "category with this slug already exists")
		if err != nil {
			return err
		}
		category.Slug = slug
		if err := s.repo.WithTx(tx).CreateCategory(ctx, category); err != nil {
			return db.StoreError(err, "insert category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newCategoryDTO(category)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context, search string, page pagination.Params) (pagination.Page[CategoryDTO], error) {
	rows, total, err := s.repo.ListCategories(ctx, search, page)
	if err != nil {
		return pagination.Page[CategoryDTO]{}, db.StoreError(err, "list categories")
	}
	items := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		items = append(items, newCategoryDTO(&rows[i]))
	}
	return pagination.NewPage(items, page, total), nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return nil, notFound(err, "category")
	}
	dto := newCategoryDTO(category)
	return &dto, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryPatch) (*CategoryDTO, error) {
	var category *models.Category
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		var err error
		category, err = txRepo.FindCategory(ctx, id)
		if err != nil {
			return notFound(err, "category")
		}

		var changed []string
		renamed := false
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			if name != category.Name {
				if err := ensureFree(ctx, tx, slugs.CategoryName, name, &category.ID, "category with this name already exists"); err != nil {
					return err
				}
				category.Name = name
				renamed = true
				changed = append(changed, "name")
			}
		}
		if input.Slug != nil || renamed {
			slug, err := resolveSlug(ctx, tx, slugs.CategorySlug, input.Slug, category.Name, &category.ID, "category with this slug already exists")
			if err != nil {
				return err
			}
			category.Slug = slug
			changed = append(changed, "slug")
		}
		if input.IsActive != nil {
			category.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}
		if err := txRepo.UpdateCategory(ctx, category, changed...); err != nil {
			return db.StoreError(err, "update category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newCategoryDTO(category)
	return &dto, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteCategory(ctx, id)
	if err != nil {
		return db.StoreError(err, "delete category")
	}
	if affected == 0 {
		return pkgerrors.NotFound("category")
	}
	return nil
}

func (s *service) CreateSubCategory(ctx context.Context, input SubCategoryInput) (*SubCategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	sub := &models.SubCategory{Name: name, CategoryID: input.CategoryID, IsActive: boolOr(input.IsActive, true)}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		category, err := txRepo.FindCategory(ctx, input.CategoryID)
		if err != nil {
			return notFound(err, "category")
		}
		if err := ensureFree(ctx, tx, slugs.SubCategoryName(category.ID), name, nil, "sub-category with this name already exists in category"); err != nil {
			return err
		}
		slug, err := resolveSlug(ctx, tx, slugs.SubCategorySlug(category.ID), input.Slug, name, nil, "sub-category with this slug already exists in category")
		if err != nil {
			return err
		}
		sub.Slug = slug
		if err := txRepo.CreateSubCategory(ctx, sub); err != nil {
			return db.StoreError(err, "insert sub-category")
		}
		sub.Category = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newSubCategoryDTO(sub)
	return &dto, nil
}

func (s *service) ListSubCategories(ctx context.Context, filter SubCategoryFilter, page pagination.Params) (pagination.Page[SubCategoryDTO], error) {
	rows, total, err := s.repo.ListSubCategories(ctx, filter, page)
	if err != nil {
		return pagination.Page[SubCategoryDTO]{}, db.StoreError(err, "list sub-categories")
	}
	return pagination.NewPage(toSubCategoryDTOs(rows), page, total), nil
}

func (s *service) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]SubCategoryDTO, error) {
	if _, err := s.repo.FindCategory(ctx, categoryID); err != nil {
		return nil, notFound(err, "category")
	}
	rows, _, err := s.repo.ListSubCategories(ctx, SubCategoryFilter{CategoryID: &categoryID}, pagination.Params{})
	if err != nil {
		return nil, db.StoreError(err, "list sub-categories")
	}
	return toSubCategoryDTOs(rows), nil
}

func (s *service) GetSubCategory(ctx context.Context, id uuid.UUID) (*SubCategoryDTO, error) {
	sub, err := s.repo.FindSubCategory(ctx, id)
	if err != nil {
		return nil, notFound(err, "sub-category")
	}
	dto := newSubCategoryDTO(sub)
	return &dto, nil
}

func (s *service) UpdateSubCategory(ctx context.Context, id uuid.UUID, input SubCategoryPatch) (*SubCategoryDTO, error) {
	var sub *models.SubCategory
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		var err error
		sub, err = txRepo.FindSubCategory(ctx, id)
		if err != nil {
			return notFound(err, "sub-category")
		}

		var changed []string
		moved := false
		if input.CategoryID != nil && *input.CategoryID != sub.CategoryID {
			category, err := txRepo.FindCategory(ctx, *input.CategoryID)
			if err != nil {
				return notFound(err, "category")
			}
			sub.CategoryID = category.ID
			sub.Category = category
			moved = true
			changed = append(changed, "category_id")
		}

		renamed := false
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			if name != sub.Name {
				sub.Name = name
				renamed = true
				changed = append(changed, "name")
			}
		}
		if renamed || moved {
			if err := ensureFree(ctx, tx, slugs.SubCategoryName(sub.CategoryID), sub.Name, &sub.ID, "sub-category with this name already exists in category"); err != nil {
				return err
			}
		}
		if input.Slug != nil || renamed || moved {
			explicit := input.Slug
			if explicit == nil && !renamed {
				// keep the current slug when only the category changes
				current := sub.Slug
				explicit = &current
			}
			slug, err := resolveSlug(ctx, tx, slugs.SubCategorySlug(sub.CategoryID), explicit, sub.Name, &sub.ID, "sub-category with this slug already exists in category")
			if err != nil {
				return err
			}
			sub.Slug = slug
			changed = append(changed, "slug")
		}
		if input.IsActive != nil {
			sub.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}
		if err := txRepo.UpdateSubCategory(ctx, sub, changed...); err != nil {
			return db.StoreError(err, "update sub-category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newSubCategoryDTO(sub)
	return &dto, nil
}

func (s *service) DeleteSubCategory(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteSubCategory(ctx, id)
	if err != nil {
		return db.StoreError(err, "delete sub-category")
	}
	if affected == 0 {
		return pkgerrors.NotFound("sub-category")
	}
	return nil
}

func toSubCategoryDTOs(rows []models.SubCategory) []SubCategoryDTO {
	items := make([]SubCategoryDTO, 0, len(rows))
	for i := range rows {
		items = append(items, newSubCategoryDTO(&rows[i]))
	}
	return items
}

func ensureFree(ctx context.Context, tx *gorm.DB, scope slugs.Scope, value string, excludeID *uuid.UUID, conflictMsg string) error {
	taken, err := slugs.Taken(ctx, tx, scope, value, excludeID)
	if err != nil {
		return db.StoreError(err, "check "+scope.Table+"."+scope.Column)
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, conflictMsg)
	}
	return nil
}

func resolveSlug(ctx context.Context, tx *gorm.DB, scope slugs.Scope, explicit *string, name string, excludeID *uuid.UUID, conflictMsg string) (string, error) {
	if explicit != nil && strings.TrimSpace(*explicit) != "" {
		slug := strings.TrimSpace(*explicit)
		if err := ensureFree(ctx, tx, scope, slug, excludeID, conflictMsg); err != nil {
			return "", err
		}
		return slug, nil
	}
	slug, err := slugs.Unique(ctx, tx, name, scope, excludeID)
	if err != nil {
		return "", db.StoreError(err, "generate "+scope.Table+" slug")
	}
	return slug, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(entity)
	}
	return db.StoreError(err, "load "+entity)
}
