package brands

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// Repository persists brands.
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

func (r *Repository) Create(ctx context.Context, brand *models.Brand) error {
	return r.db.WithContext(ctx).Create(brand).Error
}

func (r *Repository) Update(ctx context.Context, brand *models.Brand, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, brand, columns...)
}

// FindByID loads a non-deleted brand.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

// SoftDelete stamps deleted_at on the brand.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Brand{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// List returns brands matching search on name or slug, newest first.
func (r *Repository) List(ctx context.Context, search string, page pagination.Params) ([]models.Brand, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Brand{})
		if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
			like := db.ContainsPattern(term)
			q = q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(slug) LIKE ? ESCAPE '\'`, like, like)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var brands []models.Brand
	if err := page.Scope(base().Order("created_at DESC").Order("id DESC")).Find(&brands).Error; err != nil {
		return nil, 0, err
	}
	return brands, total, nil
}
