package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/images"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
)

const (
	maxTitleLen   = 500
	maxCommentLen = 2000
)

// Service manages product reviews and their attached media.
type Service interface {
	CreateReview(ctx context.Context, productID, userID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error)
	UpdateReview(ctx context.Context, reviewID uuid.UUID, actor Actor, input UpdateReviewInput) (*ReviewDTO, error)
	DeleteReview(ctx context.Context, reviewID uuid.UUID, actor Actor) error
	AddImages(ctx context.Context, reviewID uuid.UUID, actor Actor, files []MediaFile) ([]images.ImageDTO, error)
}

// Actor is the authenticated caller acting on a review.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// MediaFile is one uploaded file.
type MediaFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

type CreateReviewInput struct {
	Rating  int
	Title   *string
	Comment *string
	Media   []MediaFile
}

type UpdateReviewInput struct {
	Rating   *int
	Title    *string
	Comment  *string
	IsActive *bool
}

// ReviewerDTO is the public view of a review author.
type ReviewerDTO struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
}

type ReviewDTO struct {
	ID                 uuid.UUID         `json:"id"`
	ProductID          uuid.UUID         `json:"productId"`
	UserID             uuid.UUID         `json:"userId"`
	Rating             int               `json:"rating"`
	Title              *string           `json:"title"`
	Comment            *string           `json:"comment"`
	IsVerifiedPurchase bool              `json:"isVerifiedPurchase"`
	IsActive           bool              `json:"isActive"`
	User               *ReviewerDTO      `json:"user"`
	Images             []images.ImageDTO `json:"images"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func newReviewDTO(r *models.ProductReview) ReviewDTO {
	return ReviewDTO{
		ID:                 r.ID,
		ProductID:          r.ProductID,
		UserID:             r.UserID,
		Rating:             r.Rating,
		Title:              r.Title,
		Comment:            r.Comment,
		IsVerifiedPurchase: r.IsVerifiedPurchase,
		IsActive:           r.IsActive,
		Images:             []images.ImageDTO{},
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type uploader interface {
	Upload(ctx context.Context, input images.UploadInput) (*images.ImageDTO, error)
}

type mediaFailureRecorder interface {
	IncMediaFailure(module string)
}

type service struct {
	repo      *Repository
	dbClient  db.TxRunner
	uploader  uploader
	imageRepo *images.Repository
	recorder  mediaFailureRecorder
	logg      *logger.Logger
}

// NewService wires the review service. recorder may be nil.
func NewService(repo *Repository, dbClient db.TxRunner, uploader uploader, imageRepo *images.Repository, recorder mediaFailureRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if uploader == nil {
		return nil, fmt.Errorf("image uploader required")
	}
	if imageRepo == nil {
		return nil, fmt.Errorf("image repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if recorder == nil {
		recorder = (*metrics.CatalogMetrics)(nil)
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		uploader:  uploader,
		imageRepo: imageRepo,
		recorder:  recorder,
		logg:      logg,
	}, nil
}

// CreateReview stores one review per user and product. Media is attached
// after the review commits; a failed file is logged and skipped.
func (s *service) CreateReview(ctx context.Context, productID, userID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateContent(&input.Rating, input.Title, input.Comment); err != nil {
		return nil, err
	}

	review := &models.ProductReview{
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Title:     trimmed(input.Title),
		Comment:   trimmed(input.Comment),
		IsActive:  true,
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		exists, err := txRepo.ProductExists(ctx, productID)
		if err != nil {
			return db.StoreError(err, "load product")
		}
		if !exists {
			return pkgerrors.NotFound("product")
		}

		reviewed, err := txRepo.ExistsForUser(ctx, productID, userID)
		if err != nil {
			return db.StoreError(err, "check existing review")
		}
		if reviewed {
			return errAlreadyReviewed()
		}

		if err := txRepo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyReviewed()
			}
			return db.StoreError(err, "insert review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := newReviewDTO(review)
	for _, file := range input.Media {
		img, err := s.uploader.Upload(ctx, images.UploadInput{
			ModuleType:  enums.ModuleTypeProductReview,
			ModuleID:    review.ID,
			Type:        enums.ImageTypeGallery,
			FileName:    file.FileName,
			ContentType: file.ContentType,
			Data:        file.Data,
		})
		if err != nil {
			s.recorder.IncMediaFailure(string(enums.ModuleTypeProductReview))
			s.logg.WarnErr(s.logg.WithFields(ctx, map[string]any{
				"review_id": review.ID.String(),
				"file_name": file.FileName,
			}), "reviews.media_upload_failed", err)
			continue
		}
		dto.Images = append(dto.Images, *img)
	}

	users, err := s.reviewers(ctx, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	dto.User = users[userID]
	return &dto, nil
}

// ListReviews returns active reviews newest first. Images for the whole
// list come from one query.
func (s *service) ListReviews(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error) {
	exists, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, db.StoreError(err, "load product")
	}
	if !exists {
		return nil, pkgerrors.NotFound("product")
	}

	rows, err := s.repo.ListActiveByProduct(ctx, productID)
	if err != nil {
		return nil, db.StoreError(err, "list reviews")
	}
	if len(rows) == 0 {
		return []ReviewDTO{}, nil
	}

	reviewIDs := make([]uuid.UUID, 0, len(rows))
	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		reviewIDs = append(reviewIDs, row.ID)
		userIDs = append(userIDs, row.UserID)
	}

	owners := images.Owners{}
	owners.Add(enums.ModuleTypeProductReview, reviewIDs...)
	media, err := s.imageRepo.FindForOwners(ctx, owners, enums.ImageTypeGallery)
	if err != nil {
		return nil, db.StoreError(err, "load review images")
	}
	byReview := make(map[uuid.UUID][]images.ImageDTO, len(rows))
	for i := range media {
		byReview[media[i].ModuleID] = append(byReview[media[i].ModuleID], images.NewImageDTO(&media[i]))
	}

	users, err := s.reviewers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		dto := newReviewDTO(&rows[i])
		if imgs, ok := byReview[rows[i].ID]; ok {
			dto.Images = imgs
		}
		dto.User = users[rows[i].UserID]
		out = append(out, dto)
	}
	return out, nil
}

func (s *service) UpdateReview(ctx context.Context, reviewID uuid.UUID, actor Actor, input UpdateReviewInput) (*ReviewDTO, error) {
	if err := validateContent(input.Rating, input.Title, input.Comment); err != nil {
		return nil, err
	}
	if input.IsActive != nil && !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can change review visibility")
	}

	var updated *models.ProductReview
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		review, err := txRepo.FindByID(ctx, reviewID)
		if err != nil {
			return notFound(err)
		}
		if err := authorize(review, actor, "update"); err != nil {
			return err
		}
		var changed []string
		if input.Rating != nil {
			review.Rating = *input.Rating
			changed = append(changed, "rating")
		}
		if input.Title != nil {
			review.Title = trimmed(input.Title)
			changed = append(changed, "title")
		}
		if input.Comment != nil {
			review.Comment = trimmed(input.Comment)
			changed = append(changed, "comment")
		}
		if input.IsActive != nil {
			review.IsActive = *input.IsActive
			changed = append(changed, "is_active")
		}
		if err := txRepo.Update(ctx, review, changed...); err != nil {
			return db.StoreError(err, "update review")
		}
		updated = review
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := newReviewDTO(updated)
	media, err := s.imageRepo.ListByModule(ctx, enums.ModuleTypeProductReview, updated.ID)
	if err != nil {
		return nil, db.StoreError(err, "load review images")
	}
	dto.Images = images.ToDTOs(media)
	return &dto, nil
}

// DeleteReview soft-deletes the review together with its images.
func (s *service) DeleteReview(ctx context.Context, reviewID uuid.UUID, actor Actor) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		review, err := txRepo.FindByID(ctx, reviewID)
		if err != nil {
			return notFound(err)
		}
		if err := authorize(review, actor, "delete"); err != nil {
			return err
		}
		if err := txRepo.SoftDelete(ctx, review.ID); err != nil {
			return db.StoreError(err, "delete review")
		}
		if err := s.imageRepo.WithTx(tx).SoftDeleteByModule(ctx, enums.ModuleTypeProductReview, review.ID); err != nil {
			return db.StoreError(err, "delete review images")
		}
		return nil
	})
}

// AddImages attaches files to an existing review. Unlike create, a failed
// upload fails the request.
func (s *service) AddImages(ctx context.Context, reviewID uuid.UUID, actor Actor, files []MediaFile) ([]images.ImageDTO, error) {
	if len(files) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := authorize(review, actor, "update"); err != nil {
		return nil, err
	}

	out := make([]images.ImageDTO, 0, len(files))
	for _, file := range files {
		img, err := s.uploader.Upload(ctx, images.UploadInput{
			ModuleType:  enums.ModuleTypeProductReview,
			ModuleID:    review.ID,
			Type:        enums.ImageTypeGallery,
			FileName:    file.FileName,
			ContentType: file.ContentType,
			Data:        file.Data,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	return out, nil
}

func (s *service) reviewers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ReviewerDTO, error) {
	rows, err := s.repo.FindUsers(ctx, ids)
	if err != nil {
		return nil, db.StoreError(err, "load reviewers")
	}
	out := make(map[uuid.UUID]*ReviewerDTO, len(rows))
	for _, u := range rows {
		out[u.ID] = &ReviewerDTO{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
	}
	return out, nil
}

func authorize(review *models.ProductReview, actor Actor, action string) error {
	if review.UserID == actor.UserID || actor.isAdmin() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "you do not have permission to "+action+" this review")
}

func validateContent(rating *int, title, comment *string) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if title != nil && len(*title) > maxTitleLen {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "title must not exceed %d characters", maxTitleLen)
	}
	if comment != nil && len(*comment) > maxCommentLen {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "comment must not exceed %d characters", maxCommentLen)
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func errAlreadyReviewed() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("review")
	}
	return db.StoreError(err, "load review")
}
