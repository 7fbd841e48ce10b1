package images

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

// Owners groups owner ids by module type for batched lookups.
type Owners map[enums.ModuleType][]uuid.UUID

// Add appends ids for the module type, skipping nil ids.
func (o Owners) Add(moduleType enums.ModuleType, ids ...uuid.UUID) {
	for _, id := range ids {
		if id != uuid.Nil {
			o[moduleType] = append(o[moduleType], id)
		}
	}
}

// Repository persists image rows.
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

func (r *Repository) Create(ctx context.Context, image *models.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

// ListByModule returns an owner's images, newest first.
func (r *Repository) ListByModule(ctx context.Context, moduleType enums.ModuleType, moduleID uuid.UUID) ([]models.Image, error) {
	var rows []models.Image
	err := r.db.WithContext(ctx).
		Where("module_type = ? AND module_id = ?", moduleType, moduleID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// FindForOwners loads the images of every owner in one query, oldest first.
// When types is non-empty only those image types are returned.
func (r *Repository) FindForOwners(ctx context.Context, owners Owners, types ...enums.ImageType) ([]models.Image, error) {
	q := r.db.WithContext(ctx).Model(&models.Image{})

	var ownerClause *gorm.DB
	for moduleType, ids := range owners {
		if len(ids) == 0 {
			continue
		}
		cond := r.db.Where("module_type = ? AND module_id IN ?", moduleType, ids)
		if ownerClause == nil {
			ownerClause = cond
		} else {
			ownerClause = ownerClause.Or(cond)
		}
	}
	if ownerClause == nil {
		return nil, nil
	}
	q = q.Where(ownerClause)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}

	var rows []models.Image
	err := q.Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// SoftDeleteByModule removes every image attached to the owner.
func (r *Repository) SoftDeleteByModule(ctx context.Context, moduleType enums.ModuleType, moduleID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("module_type = ? AND module_id = ?", moduleType, moduleID).
		Delete(&models.Image{}).Error
}
