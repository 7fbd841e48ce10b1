package images

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

var allowedExtensions = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ObjectStore writes image bytes and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
	DeleteObject(ctx context.Context, bucket, objectKey string) error
	DefaultBucket() string
}

// Service exposes image upload and lookup.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*ImageDTO, error)
	ListByModule(ctx context.Context, moduleType enums.ModuleType, moduleID uuid.UUID) ([]ImageDTO, error)
}

// UploadInput describes one file to attach to an owner.
type UploadInput struct {
	ModuleType  enums.ModuleType
	ModuleID    uuid.UUID
	Type        enums.ImageType
	FileName    string
	ContentType string
	Data        []byte
}

// ImageDTO is the API representation of an image.
type ImageDTO struct {
	ID         uuid.UUID        `json:"id"`
	URL        string           `json:"url"`
	ModuleType enums.ModuleType `json:"moduleType"`
	ModuleID   uuid.UUID        `json:"moduleId"`
	Type       enums.ImageType  `json:"type"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NewImageDTO maps a stored image.
func NewImageDTO(img *models.Image) ImageDTO {
	return ImageDTO{
		ID:         img.ID,
		URL:        img.URL,
		ModuleType: img.ModuleType,
		ModuleID:   img.ModuleID,
		Type:       img.Type,
		CreatedAt:  img.CreatedAt,
	}
}

// ToDTOs maps a slice of stored images.
func ToDTOs(rows []models.Image) []ImageDTO {
	out := make([]ImageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewImageDTO(&rows[i]))
	}
	return out
}

type service struct {
	repo  *Repository
	store ObjectStore
	logg  *logger.Logger
	now   func() time.Time
}

// NewService constructs an image service backed by object storage.
func NewService(repo *Repository, store ObjectStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("image repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, store: store, logg: logg, now: time.Now}, nil
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*ImageDTO, error) {
	if !input.ModuleType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid module type")
	}
	if input.ModuleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "module id is required")
	}
	if input.Type == "" {
		input.Type = enums.ImageTypeGallery
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid image type")
	}
	if len(input.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}

	ext, contentType, err := classify(input.FileName, input.ContentType)
	if err != nil {
		return nil, err
	}

	key := s.objectKey(ext)
	url, err := s.store.Put(ctx, key, input.Data, contentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}

	image := &models.Image{
		URL:        url,
		Bucket:     s.store.DefaultBucket(),
		ObjectKey:  key,
		ModuleType: input.ModuleType,
		ModuleID:   input.ModuleID,
		Type:       input.Type,
	}
	if err := s.repo.Create(ctx, image); err != nil {
		if delErr := s.store.DeleteObject(context.WithoutCancel(ctx), image.Bucket, key); delErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "object_key", key), "images.orphan_cleanup_failed", delErr)
		}
		return nil, db.StoreError(err, "insert image")
	}

	dto := NewImageDTO(image)
	return &dto, nil
}

func (s *service) ListByModule(ctx context.Context, moduleType enums.ModuleType, moduleID uuid.UUID) ([]ImageDTO, error) {
	if !moduleType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid module type")
	}
	rows, err := s.repo.ListByModule(ctx, moduleType, moduleID)
	if err != nil {
		return nil, db.StoreError(err, "list images")
	}
	return ToDTOs(rows), nil
}

// objectKey is <uuid>-<unix millis><ext>.
func (s *service) objectKey(ext string) string {
	return fmt.Sprintf("%s-%d%s", uuid.NewString(), s.now().UnixMilli(), ext)
}

func classify(fileName, declared string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "only jpeg, jpg, png, gif and webp images are allowed")
	}
	// a declared type wins only when it is one of the stored image types
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if allowedContentTypes[declared] {
		contentType = declared
	}
	return ext, contentType, nil
}
