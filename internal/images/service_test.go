package images

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/catalog-backend/pkg/db/dbtest"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type fakeStore struct {
	putErr  error
	puts    []string
	deleted []string
	types   []string
}

func (f *fakeStore) Put(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts = append(f.puts, key)
	f.types = append(f.types, contentType)
	return "https://cdn.test/bucket/" + key, nil
}

func (f *fakeStore) DeleteObject(_ context.Context, _ string, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) DefaultBucket() string { return "bucket" }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestUploadStoresObjectAndRow(t *testing.T) {
	client := dbtest.Open(t)
	store := &fakeStore{}
	svc, err := NewService(NewRepository(client.DB()), store, testLogger())
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return time.UnixMilli(1700000000123) }

	ownerID := uuid.New()
	img, err := svc.Upload(context.Background(), UploadInput{
		ModuleType: enums.ModuleTypeProduct,
		ModuleID:   ownerID,
		Type:       enums.ImageTypePrimary,
		FileName:   "Front.PNG",
		Data:       []byte("png"),
	})
	require.NoError(t, err)
	require.Len(t, store.puts, 1)
	require.True(t, strings.HasSuffix(store.puts[0], "-1700000000123.png"))
	_, parseErr := uuid.Parse(strings.TrimSuffix(store.puts[0], "-1700000000123.png"))
	require.NoError(t, parseErr)
	require.Equal(t, "image/png", store.types[0])
	require.Equal(t, "https://cdn.test/bucket/"+store.puts[0], img.URL)

	var row models.Image
	require.NoError(t, client.DB().First(&row, "id = ?", img.ID).Error)
	require.Equal(t, "bucket", row.Bucket)
	require.Equal(t, store.puts[0], row.ObjectKey)
	require.Equal(t, ownerID, row.ModuleID)
}

func TestUploadRejectsExtensions(t *testing.T) {
	client := dbtest.Open(t)
	store := &fakeStore{}
	svc, err := NewService(NewRepository(client.DB()), store, testLogger())
	require.NoError(t, err)

	for _, name := range []string{"doc.pdf", "noext", "image.svg"} {
		_, err := svc.Upload(context.Background(), UploadInput{
			ModuleType: enums.ModuleTypeProduct,
			ModuleID:   uuid.New(),
			FileName:   name,
			Data:       []byte("x"),
		})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
	require.Empty(t, store.puts)
}

func TestUploadIgnoresDeclaredTypeOutsideAllowlist(t *testing.T) {
	client := dbtest.Open(t)
	store := &fakeStore{}
	svc, err := NewService(NewRepository(client.DB()), store, testLogger())
	require.NoError(t, err)

	cases := []struct {
		fileName string
		declared string
		want     string
	}{
		{"x.png", "image/svg+xml", "image/png"},
		{"x.jpg", "text/html", "image/jpeg"},
		{"x.png", "IMAGE/WEBP; q=1", "image/webp"},
		{"x.gif", "", "image/gif"},
	}
	for i, tc := range cases {
		_, err := svc.Upload(context.Background(), UploadInput{
			ModuleType:  enums.ModuleTypeProduct,
			ModuleID:    uuid.New(),
			FileName:    tc.fileName,
			ContentType: tc.declared,
			Data:        []byte("x"),
		})
		require.NoError(t, err, tc.declared)
		require.Equal(t, tc.want, store.types[i], tc.declared)
	}
}

func TestUploadStorageFailureIsDependency(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), &fakeStore{putErr: errors.New("boom")}, testLogger())
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), UploadInput{
		ModuleType: enums.ModuleTypeVariant,
		ModuleID:   uuid.New(),
		FileName:   "a.webp",
		Data:       []byte("x"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestListByModuleNewestFirst(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, &fakeStore{}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	ownerID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i, key := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.Create(ctx, &models.Image{
			URL: "u/" + key, Bucket: "b", ObjectKey: key,
			ModuleType: enums.ModuleTypeProduct, ModuleID: ownerID, Type: enums.ImageTypeGallery,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Image{
		URL: "u/other", Bucket: "b", ObjectKey: "other",
		ModuleType: enums.ModuleTypeVariant, ModuleID: ownerID, Type: enums.ImageTypeGallery,
	}))

	list, err := svc.ListByModule(ctx, enums.ModuleTypeProduct, ownerID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "u/new", list[0].URL)
	require.Equal(t, "u/old", list[2].URL)
}

func TestFindForOwnersBatchesAcrossModules(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	productID, variantID, strayID := uuid.New(), uuid.New(), uuid.New()
	seed := []models.Image{
		{ModuleType: enums.ModuleTypeProduct, ModuleID: productID, Type: enums.ImageTypePrimary},
		{ModuleType: enums.ModuleTypeProduct, ModuleID: productID, Type: enums.ImageTypeGallery},
		{ModuleType: enums.ModuleTypeVariant, ModuleID: variantID, Type: enums.ImageTypePrimary},
		{ModuleType: enums.ModuleTypeVariant, ModuleID: strayID, Type: enums.ImageTypePrimary},
		{ModuleType: enums.ModuleTypeProduct, ModuleID: variantID, Type: enums.ImageTypePrimary},
	}
	for i := range seed {
		seed[i].URL, seed[i].Bucket, seed[i].ObjectKey = "u", "b", uuid.NewString()
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	owners := Owners{}
	owners.Add(enums.ModuleTypeProduct, productID)
	owners.Add(enums.ModuleTypeVariant, variantID, uuid.Nil)

	rows, err := repo.FindForOwners(ctx, owners, enums.ImageTypePrimary)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	all, err := repo.FindForOwners(ctx, owners)
	require.NoError(t, err)
	require.Len(t, all, 3)

	none, err := repo.FindForOwners(ctx, Owners{})
	require.NoError(t, err)
	require.Empty(t, none)
}
