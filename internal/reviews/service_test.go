package reviews

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/images"
	"github.com/angelmondragon/catalog-backend/pkg/db/dbtest"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type memoryStore struct{}

func (m *memoryStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (m *memoryStore) DeleteObject(context.Context, string, string) error { return nil }

func (m *memoryStore) DefaultBucket() string { return "reviews" }

type countingRecorder struct {
	failures atomic.Int64
}

func (c *countingRecorder) IncMediaFailure(string) { c.failures.Add(1) }

type fixture struct {
	conn     *gorm.DB
	svc      Service
	recorder *countingRecorder
	product  *models.Product
	author   *models.User
	other    *models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	imageRepo := images.NewRepository(conn)
	imageSvc, err := images.NewService(imageRepo, &memoryStore{}, logg)
	require.NoError(t, err)

	recorder := &countingRecorder{}
	svc, err := NewService(NewRepository(conn), client, imageSvc, imageRepo, recorder, logg)
	require.NoError(t, err)

	product := &models.Product{
		Name: "Phone", Slug: "phone", BrandID: uuid.New(), SubCategoryID: uuid.New(),
		Status: enums.ProductStatusActive, CreatedBy: uuid.New(), SellerID: uuid.New(),
	}
	require.NoError(t, conn.Create(product).Error)

	author := seedUser(t, conn, "ana@example.com")
	other := seedUser(t, conn, "ben@example.com")

	return fixture{conn: conn, svc: svc, recorder: recorder, product: product, author: author, other: other}
}

func seedUser(t *testing.T, conn *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{
		Email: email, PasswordHash: "x", FirstName: "First", LastName: "Last",
		Role: enums.UserRoleCustomer, EmailVerified: true, IsActive: true,
	}
	require.NoError(t, conn.Create(u).Error)
	return u
}

func strPtr(v string) *string { return &v }

func TestCreateReviewRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 5, Title: strPtr("  Great  ")})
	require.NoError(t, err)
	require.Equal(t, "Great", *first.Title)
	require.True(t, first.IsActive)
	require.False(t, first.IsVerifiedPurchase)
	require.Equal(t, "ana@example.com", first.User.Email)

	_, err = f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var stored models.ProductReview
	require.NoError(t, f.conn.Take(&stored, "id = ?", first.ID).Error)
	require.Equal(t, 5, stored.Rating, "the first review is untouched")

	var count int64
	require.NoError(t, f.conn.Model(&models.ProductReview{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUniqueIndexGuardsConcurrentInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.conn)

	require.NoError(t, repo.Create(ctx, &models.ProductReview{ProductID: f.product.ID, UserID: f.author.ID, Rating: 4, IsActive: true}))
	err := repo.Create(ctx, &models.ProductReview{ProductID: f.product.ID, UserID: f.author.ID, Rating: 2, IsActive: true})
	require.Error(t, err)
}

func TestReviewAllowedAgainAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 2})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteReview(ctx, first.ID, Actor{UserID: f.author.ID, Role: enums.UserRoleCustomer}))

	_, err = f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 4})
	require.NoError(t, err)
}

func TestCreateReviewValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 6})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateReview(ctx, uuid.New(), f.author.ID, CreateReviewInput{Rating: 3})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, f.conn.Delete(f.product).Error)
	_, err = f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 3})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateReviewMediaIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	review, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{
		Rating: 4,
		Media: []MediaFile{
			{FileName: "a.png", ContentType: "image/png", Data: []byte("png")},
			{FileName: "notes.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
			{FileName: "b.jpg", ContentType: "image/jpeg", Data: []byte("jpg")},
		},
	})
	require.NoError(t, err)
	require.Len(t, review.Images, 2)
	require.Equal(t, int64(1), f.recorder.failures.Load())
	for _, img := range review.Images {
		require.Equal(t, enums.ModuleTypeProductReview, img.ModuleType)
		require.Equal(t, enums.ImageTypeGallery, img.Type)
		require.Equal(t, review.ID, img.ModuleID)
	}
}

func TestListReviewsNewestFirstWithImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	third := seedUser(t, f.conn, "cy@example.com")

	older := &models.ProductReview{ProductID: f.product.ID, UserID: f.author.ID, Rating: 3, IsActive: true, CreatedAt: base}
	newer := &models.ProductReview{ProductID: f.product.ID, UserID: f.other.ID, Rating: 5, IsActive: true, CreatedAt: base.Add(time.Minute)}
	hidden := &models.ProductReview{ProductID: f.product.ID, UserID: third.ID, Rating: 1, IsActive: false, CreatedAt: base.Add(2 * time.Minute)}
	for _, r := range []*models.ProductReview{older, newer, hidden} {
		require.NoError(t, f.conn.Create(r).Error)
	}
	require.NoError(t, f.conn.Create(&models.Image{
		URL: "older.png", Bucket: "b", ObjectKey: "k1",
		ModuleType: enums.ModuleTypeProductReview, ModuleID: older.ID, Type: enums.ImageTypeGallery,
	}).Error)

	list, err := f.svc.ListReviews(ctx, f.product.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Empty(t, list[0].Images)
	require.Equal(t, "ben@example.com", list[0].User.Email)
	require.Equal(t, older.ID, list[1].ID)
	require.Len(t, list[1].Images, 1)
	require.Equal(t, "older.png", list[1].Images[0].URL)

	_, err = f.svc.ListReviews(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateReviewPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: f.author.ID, Role: enums.UserRoleCustomer}
	stranger := Actor{UserID: f.other.ID, Role: enums.UserRoleCustomer}
	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	review, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 3})
	require.NoError(t, err)

	rating := 4
	updated, err := f.svc.UpdateReview(ctx, review.ID, owner, UpdateReviewInput{Rating: &rating, Comment: strPtr("better now")})
	require.NoError(t, err)
	require.Equal(t, 4, updated.Rating)
	require.Equal(t, "better now", *updated.Comment)

	_, err = f.svc.UpdateReview(ctx, review.ID, stranger, UpdateReviewInput{Rating: &rating})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	hide := false
	_, err = f.svc.UpdateReview(ctx, review.ID, owner, UpdateReviewInput{IsActive: &hide})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	hidden, err := f.svc.UpdateReview(ctx, review.ID, admin, UpdateReviewInput{IsActive: &hide})
	require.NoError(t, err)
	require.False(t, hidden.IsActive)

	bad := 9
	_, err = f.svc.UpdateReview(ctx, review.ID, owner, UpdateReviewInput{Rating: &bad})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateReview(ctx, uuid.New(), admin, UpdateReviewInput{Rating: &rating})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteReviewRemovesImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: f.author.ID, Role: enums.UserRoleCustomer}
	stranger := Actor{UserID: f.other.ID, Role: enums.UserRoleCustomer}

	review, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{
		Rating: 5,
		Media:  []MediaFile{{FileName: "a.webp", ContentType: "image/webp", Data: []byte("webp")}},
	})
	require.NoError(t, err)
	require.Len(t, review.Images, 1)

	err = f.svc.DeleteReview(ctx, review.ID, stranger)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, f.svc.DeleteReview(ctx, review.ID, owner))

	var live int64
	require.NoError(t, f.conn.Model(&models.Image{}).Where("module_id = ?", review.ID).Count(&live).Error)
	require.Zero(t, live)
	var all int64
	require.NoError(t, f.conn.Unscoped().Model(&models.Image{}).Where("module_id = ?", review.ID).Count(&all).Error)
	require.Equal(t, int64(1), all)

	err = f.svc.DeleteReview(ctx, review.ID, owner)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAddImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: f.author.ID, Role: enums.UserRoleCustomer}

	review, err := f.svc.CreateReview(ctx, f.product.ID, f.author.ID, CreateReviewInput{Rating: 5})
	require.NoError(t, err)

	added, err := f.svc.AddImages(ctx, review.ID, owner, []MediaFile{{FileName: "c.gif", ContentType: "image/gif", Data: []byte("gif")}})
	require.NoError(t, err)
	require.Len(t, added, 1)

	_, err = f.svc.AddImages(ctx, review.ID, Actor{UserID: f.other.ID, Role: enums.UserRoleCustomer}, []MediaFile{{FileName: "c.gif", Data: []byte("gif")}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.AddImages(ctx, review.ID, owner, []MediaFile{{FileName: "c.exe", Data: []byte("exe")}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddImages(ctx, review.ID, owner, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
