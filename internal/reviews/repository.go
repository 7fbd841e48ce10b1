package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
)

// Repository persists product reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a review repository backed by gorm.
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

func (r *Repository) Create(ctx context.Context, review *models.ProductReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *Repository) Update(ctx context.Context, review *models.ProductReview, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, review, columns...)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductReview, error) {
	var review models.ProductReview
	if err := r.db.WithContext(ctx).Take(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// ExistsForUser reports whether the user already has a live review of the product.
func (r *Repository) ExistsForUser(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListActiveByProduct returns the product's active reviews, newest first.
func (r *Repository) ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	var rows []models.ProductReview
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProductReview{}, "id = ?", id).Error
}

// ProductExists reports whether a non-deleted product with id exists.
func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) FindUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
