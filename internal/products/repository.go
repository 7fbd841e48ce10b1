package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

// Repository wires together all product-related persistence helpers.
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

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Take(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error
}

// UpdateProduct writes the named columns of a live product.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product, columns ...string) error {
	return db.UpdateColumns(ctx, r.db, product, columns...)
}

// DeleteProduct soft deletes the product.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// FindBrand loads a non-deleted brand.
func (r *Repository) FindBrand(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.WithContext(ctx).Take(&brand, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

// FindSubCategory loads a non-deleted subcategory.
func (r *Repository) FindSubCategory(ctx context.Context, id uuid.UUID) (*models.SubCategory, error) {
	var sub models.SubCategory
	if err := r.db.WithContext(ctx).Take(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetProductDetail loads a product with its taxonomy and non-deleted
// variants, oldest variant first.
func (r *Repository) GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Brand").
		Preload("SubCategory").
		Preload("Variants", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("id ASC")
		}).
		Take(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

type productListQuery struct {
	Filters    ProductListFilters
	Privileged bool
	Offset     int
	Limit      int
}

type productSummaryRecord struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Description   *string
	BrandID       uuid.UUID
	SubCategoryID uuid.UUID
	Status        enums.ProductStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *Repository) listBase(ctx context.Context, query productListQuery) *gorm.DB {
	qb := r.db.WithContext(ctx).
		Table("products p").
		Where("p.deleted_at IS NULL")

	if !query.Privileged {
		qb = qb.Where("p.status = ?", enums.ProductStatusActive)
	}

	filter := query.Filters
	if search := strings.TrimSpace(filter.Search); search != "" {
		qb = qb.Where(`LOWER(p.name) LIKE ? ESCAPE '\'`, db.ContainsPattern(strings.ToLower(search)))
	}
	if filter.BrandID != nil {
		qb = qb.Where("p.brand_id = ?", *filter.BrandID)
	}
	if filter.SubCategoryID != nil {
		qb = qb.Where("p.sub_category_id = ?", *filter.SubCategoryID)
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		exists := "EXISTS (SELECT 1 FROM product_variants v WHERE v.product_id = p.id AND v.deleted_at IS NULL"
		args := []any{}
		if filter.MinPrice != nil {
			exists += " AND v.price >= ?"
			args = append(args, *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			exists += " AND v.price <= ?"
			args = append(args, *filter.MaxPrice)
		}
		qb = qb.Where(exists+")", args...)
	}
	return qb
}

// ListProductSummaries returns one page of filtered products and the total
// size of the filtered set.
func (r *Repository) ListProductSummaries(ctx context.Context, query productListQuery) ([]productSummaryRecord, int64, error) {
	var total int64
	if err := r.listBase(ctx, query).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	qb := r.listBase(ctx, query).
		Select(strings.Join([]string{
			"p.id",
			"p.name",
			"p.slug",
			"p.description",
			"p.brand_id",
			"p.sub_category_id",
			"p.status",
			"p.created_at",
			"p.updated_at",
		}, ", ")).
		Order("p.created_at DESC").
		Order("p.id DESC")
	if query.Limit > 0 {
		qb = qb.Limit(query.Limit).Offset(query.Offset)
	}

	var records []productSummaryRecord
	if err := qb.Scan(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CandidateDefaults returns, per product, the first active variant ordered by
// is_default DESC, created_at ASC, id ASC. One query serves the whole page.
func (r *Repository) CandidateDefaults(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error) {
	out := make(map[uuid.UUID]models.ProductVariant, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var rows []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Order("is_default DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, seen := out[row.ProductID]; !seen {
			out[row.ProductID] = row
		}
	}
	return out, nil
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
