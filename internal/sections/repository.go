package sections

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
)

// Repository persists sections and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a section repository backed by gorm.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, section *models.Section) error {
	return r.db.WithContext(ctx).Omit("Items").Create(section).Error
}

func (r *Repository) Update(ctx context.Context, section *models.Section, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, section, columns...)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Section, error) {
	var section models.Section
	if err := r.db.WithContext(ctx).Take(&section, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

// FindActiveByKey returns the section only when it is active.
func (r *Repository) FindActiveByKey(ctx context.Context, key string) (*models.Section, error) {
	var section models.Section
	err := r.db.WithContext(ctx).
		Where("key = ? AND is_active = ?", key, true).
		Take(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Section, error) {
	var rows []models.Section
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// Delete removes the section and its items.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.db.WithContext(ctx).Where("section_id = ?", id).Delete(&models.SectionItem{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Delete(&models.Section{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *Repository) CreateItem(ctx context.Context, item *models.SectionItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem writes the named columns of an item. A hard-deleted item
// reports gorm.ErrRecordNotFound.
func (r *Repository) UpdateItem(ctx context.Context, item *models.SectionItem, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, item, columns...)
}

func (r *Repository) FindItem(ctx context.Context, id uuid.UUID) (*models.SectionItem, error) {
	var item models.SectionItem
	if err := r.db.WithContext(ctx).Take(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.SectionItem{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// ListItems returns a section's items in display order.
func (r *Repository) ListItems(ctx context.Context, sectionID uuid.UUID, includeInactive bool) ([]models.SectionItem, error) {
	q := r.db.WithContext(ctx).Where("section_id = ?", sectionID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.SectionItem
	err := q.Order("sort_order ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindProducts loads non-deleted products by id.
func (r *Repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// FindVariants loads non-deleted variants by id.
func (r *Repository) FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ProductVariant
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Take(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).Take(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}
