package slugs_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/catalog-backend/internal/slugs"
	"github.com/angelmondragon/catalog-backend/pkg/db/dbtest"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Electronics":            "electronics",
		"  Smart   Phones  ":     "smart-phones",
		"Kids_&_Toys!":           "kids-toys",
		"--Already--Hyphenated-": "already-hyphenated",
		"Über Cool":              "ber-cool",
		"!!!":                    "",
	}
	for in, want := range cases {
		require.Equal(t, want, slugs.Normalize(in), "input %q", in)
	}
}

func TestUniqueAppendsSuffixIncludingSoftDeleted(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()

	deleted := &models.Brand{Name: "Acme Old", Slug: "acme", IsActive: true}
	require.NoError(t, conn.Create(deleted).Error)
	require.NoError(t, conn.Delete(deleted).Error)

	slug, err := slugs.Unique(ctx, conn, "Acme", slugs.BrandSlug, nil)
	require.NoError(t, err)
	require.Equal(t, "acme-1", slug)

	require.NoError(t, conn.Create(&models.Brand{Name: "Acme One", Slug: "acme-1", IsActive: true}).Error)
	require.NoError(t, conn.Create(&models.Brand{Name: "Acme Three", Slug: "acme-3", IsActive: true}).Error)

	slug, err = slugs.Unique(ctx, conn, "ACME", slugs.BrandSlug, nil)
	require.NoError(t, err)
	require.Equal(t, "acme-2", slug)
}

func TestUniqueIgnoresExcludedRow(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()

	brand := &models.Brand{Name: "Zeta", Slug: "zeta", IsActive: true}
	require.NoError(t, conn.Create(brand).Error)

	slug, err := slugs.Unique(ctx, conn, "Zeta", slugs.BrandSlug, &brand.ID)
	require.NoError(t, err)
	require.Equal(t, "zeta", slug)
}

func TestUniqueRejectsEmptyBase(t *testing.T) {
	_, err := slugs.Unique(context.Background(), dbtest.Open(t).DB(), "***", slugs.BrandSlug, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSubCategorySlugScopedByCategory(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()

	catA := &models.Category{Name: "Men", Slug: "men", IsActive: true}
	catB := &models.Category{Name: "Women", Slug: "women", IsActive: true}
	require.NoError(t, conn.Create(catA).Error)
	require.NoError(t, conn.Create(catB).Error)
	require.NoError(t, conn.Create(&models.SubCategory{Name: "Shoes", Slug: "shoes", CategoryID: catA.ID, IsActive: true}).Error)

	slug, err := slugs.Unique(ctx, conn, "Shoes", slugs.SubCategorySlug(catB.ID), nil)
	require.NoError(t, err)
	require.Equal(t, "shoes", slug)

	slug, err = slugs.Unique(ctx, conn, "Shoes", slugs.SubCategorySlug(catA.ID), nil)
	require.NoError(t, err)
	require.Equal(t, "shoes-1", slug)
}

func TestTakenCountsSoftDeletedAndExcludes(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t).DB()

	product := &models.Product{
		Name: "Phone", Slug: "phone", BrandID: uuid.New(), SubCategoryID: uuid.New(),
		Status: "draft", CreatedBy: uuid.New(), SellerID: uuid.New(),
	}
	require.NoError(t, conn.Create(product).Error)
	variant := &models.ProductVariant{ProductID: product.ID, SKU: "A1", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, conn.Create(variant).Error)
	require.NoError(t, conn.Delete(variant).Error)

	taken, err := slugs.Taken(ctx, conn, slugs.VariantSKU, "A1", nil)
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = slugs.Taken(ctx, conn, slugs.VariantSKU, "A1", &variant.ID)
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = slugs.Taken(ctx, conn, slugs.VariantSKU, "A2", nil)
	require.NoError(t, err)
	require.False(t, taken)
}
