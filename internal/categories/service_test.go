package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/catalog-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)
	return svc
}

func strPtr(v string) *string { return &v }

func TestDuplicateCategoryIsConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	electronics, err := svc.CreateCategory(ctx, CategoryInput{Name: "Electronics"})
	require.NoError(t, err)
	require.Equal(t, "electronics", electronics.Slug)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Electronics"})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	page, err := svc.ListCategories(ctx, "", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
}

func TestCategorySlugReservedAfterDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, CategoryInput{Name: "Home", Slug: strPtr("home")})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCategory(ctx, first.ID))

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Home Goods", Slug: strPtr("home")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	generated, err := svc.CreateCategory(ctx, CategoryInput{Name: "Home!"})
	require.NoError(t, err)
	require.Equal(t, "home-1", generated.Slug)

	_, err = svc.GetCategory(ctx, first.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, CategoryInput{Name: "Garden"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Tools"})
	require.NoError(t, err)

	updated, err := svc.UpdateCategory(ctx, cat.ID, CategoryPatch{Name: strPtr("Garden & Patio")})
	require.NoError(t, err)
	require.Equal(t, "garden-patio", updated.Slug)

	_, err = svc.UpdateCategory(ctx, cat.ID, CategoryPatch{Name: strPtr("Tools")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.UpdateCategory(ctx, uuid.New(), CategoryPatch{Name: strPtr("Nope")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSubCategorySlugScopedByCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	electronics, err := svc.CreateCategory(ctx, CategoryInput{Name: "Electronics"})
	require.NoError(t, err)
	fashion, err := svc.CreateCategory(ctx, CategoryInput{Name: "Fashion"})
	require.NoError(t, err)

	phones, err := svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: electronics.ID, Name: "Accessories"})
	require.NoError(t, err)
	require.Equal(t, "accessories", phones.Slug)
	require.NotNil(t, phones.Category)
	require.Equal(t, electronics.ID, phones.Category.ID)

	// same slug in another category is free
	other, err := svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: fashion.ID, Name: "Accessories"})
	require.NoError(t, err)
	require.Equal(t, "accessories", other.Slug)

	_, err = svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: electronics.ID, Name: "Accessories"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, svc.DeleteSubCategory(ctx, phones.ID))
	again, err := svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: electronics.ID, Name: "Accessories!"})
	require.NoError(t, err)
	require.Equal(t, "accessories-1", again.Slug)

	_, err = svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: uuid.New(), Name: "Orphan"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListSubCategoriesFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	electronics, err := svc.CreateCategory(ctx, CategoryInput{Name: "Electronics"})
	require.NoError(t, err)
	fashion, err := svc.CreateCategory(ctx, CategoryInput{Name: "Fashion"})
	require.NoError(t, err)

	for _, name := range []string{"Phones", "Laptops"} {
		_, err := svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: electronics.ID, Name: name})
		require.NoError(t, err)
	}
	_, err = svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: fashion.ID, Name: "Phone Cases", Slug: strPtr("cases")})
	require.NoError(t, err)

	all, err := svc.ListSubCategories(ctx, SubCategoryFilter{Search: "phone"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, all.Data, 2)

	scoped, err := svc.ListSubCategories(ctx, SubCategoryFilter{Search: "phone", CategoryID: &electronics.ID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, scoped.Data, 1)
	require.Equal(t, "Phones", scoped.Data[0].Name)
	require.NotNil(t, scoped.Data[0].Category)

	bySlug, err := svc.ListSubCategories(ctx, SubCategoryFilter{Search: "cases"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, bySlug.Data, 1)

	byCategory, err := svc.ListByCategory(ctx, electronics.ID)
	require.NoError(t, err)
	require.Len(t, byCategory, 2)

	require.NoError(t, svc.DeleteCategory(ctx, fashion.ID))
	_, err = svc.ListByCategory(ctx, fashion.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateSubCategoryMovesCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateCategory(ctx, CategoryInput{Name: "A"})
	require.NoError(t, err)
	b, err := svc.CreateCategory(ctx, CategoryInput{Name: "B"})
	require.NoError(t, err)

	_, err = svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: b.ID, Name: "Shared"})
	require.NoError(t, err)
	sub, err := svc.CreateSubCategory(ctx, SubCategoryInput{CategoryID: a.ID, Name: "Shared"})
	require.NoError(t, err)

	_, err = svc.UpdateSubCategory(ctx, sub.ID, SubCategoryPatch{CategoryID: &b.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	moved, err := svc.UpdateSubCategory(ctx, sub.ID, SubCategoryPatch{CategoryID: &b.ID, Name: strPtr("Shared Two")})
	require.NoError(t, err)
	require.Equal(t, b.ID, moved.CategoryID)
	require.Equal(t, "shared-two", moved.Slug)

	got, err := svc.GetSubCategory(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, "B", got.Category.Name)
}
