package variants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
)

// Repository persists product variants and the default flag.
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

func (r *Repository) Create(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

// Update writes the named columns of a live variant. is_default is only ever
// changed through MarkDefault.
func (r *Repository) Update(ctx context.Context, variant *models.ProductVariant, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, variant, columns...)
}

// FindByID loads a non-deleted variant.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).Take(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// ListByProduct returns the product's non-deleted variants, oldest first.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var rows []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.ProductVariant{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// FindProduct loads a non-deleted product, optionally with brand and
// subcategory.
func (r *Repository) FindProduct(ctx context.Context, productID uuid.UUID, withTaxonomy bool) (*models.Product, error) {
	q := r.db.WithContext(ctx)
	if withTaxonomy {
		q = q.Preload("Brand").Preload("SubCategory")
	}
	var product models.Product
	if err := q.Take(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProduct loads a non-deleted product and locks its row until the
// surrounding transaction ends, serialising default changes per product.
func (r *Repository) LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := db.ForUpdate(r.db.WithContext(ctx)).Take(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindDefault returns the flagged default variant of a product.
func (r *Repository) FindDefault(ctx context.Context, productID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_default = ?", productID, true).
		Order("created_at ASC").
		Order("id ASC").
		Take(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// OldestActive returns the first active variant by creation order.
func (r *Repository) OldestActive(ctx context.Context, productID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("created_at ASC").
		Order("id ASC").
		Take(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// MarkDefault clears the flag on every other live variant of the product and
// sets it on variantID. Callers must run it inside a transaction.
func (r *Repository) MarkDefault(ctx context.Context, productID, variantID uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Model(&models.ProductVariant{}).
		Where("product_id = ? AND id <> ? AND is_default = ?", productID, variantID, true).
		Update("is_default", false).Error; err != nil {
		return err
	}
	res := tx.Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", variantID, productID).
		Update("is_default", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
