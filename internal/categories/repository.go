package categories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// Repository persists categories and their subcategories.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) UpdateCategory(ctx context.Context, category *models.Category, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, category, columns...)
}

// FindCategory loads a non-deleted category.
func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// ListCategories filters by name or slug, newest first.
func (r *Repository) ListCategories(ctx context.Context, search string, page pagination.Params) ([]models.Category, int64, error) {
	base := func() *gorm.DB {
		return searchNameOrSlug(r.db.WithContext(ctx).Model(&models.Category{}), search)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Category
	if err := page.Scope(base().Order("created_at DESC").Order("id DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) CreateSubCategory(ctx context.Context, sub *models.SubCategory) error {
	return r.db.WithContext(ctx).Omit("Category").Create(sub).Error
}

func (r *Repository) UpdateSubCategory(ctx context.Context, sub *models.SubCategory, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, sub, columns...)
}

// FindSubCategory loads a non-deleted subcategory with its category.
func (r *Repository) FindSubCategory(ctx context.Context, id uuid.UUID) (*models.SubCategory, error) {
	var sub models.SubCategory
	if err := r.db.WithContext(ctx).Preload("Category").First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) DeleteSubCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.SubCategory{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// SubCategoryFilter narrows the subcategory listing.
type SubCategoryFilter struct {
	Search     string
	CategoryID *uuid.UUID
}

// ListSubCategories applies (name OR slug match) AND category, newest first.
func (r *Repository) ListSubCategories(ctx context.Context, filter SubCategoryFilter, page pagination.Params) ([]models.SubCategory, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.SubCategory{})
		q = searchNameOrSlug(q, filter.Search)
		if filter.CategoryID != nil {
			q = q.Where("category_id = ?", *filter.CategoryID)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.SubCategory
	if err := page.Scope(base().Preload("Category").Order("created_at DESC").Order("id DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func searchNameOrSlug(q *gorm.DB, search string) *gorm.DB {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return q
	}
	like := db.ContainsPattern(term)
	return q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(slug) LIKE ? ESCAPE '\')`, like, like)
}
