package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/reviews"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type updateReviewRequest struct {
	Rating   *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Title    *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Comment  *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// ReviewLimits bounds review uploads.
type ReviewLimits struct {
	MaxUploadBytes int64
	MaxFiles       int
}

func reviewUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
}

func reviewActor(r *http.Request) (reviews.Actor, error) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		return reviews.Actor{}, err
	}
	return reviews.Actor{UserID: userID, Role: enums.UserRole(middleware.RoleFromContext(r.Context()))}, nil
}

func toMediaFiles(files []uploadedFile) []reviews.MediaFile {
	out := make([]reviews.MediaFile, 0, len(files))
	for _, f := range files {
		out = append(out, reviews.MediaFile{FileName: f.FileName, ContentType: f.ContentType, Data: f.Data})
	}
	return out
}

// CreateReview takes multipart fields rating, title, comment and optional files.
// A JSON body without media is accepted as well.
func CreateReview(svc reviews.Service, limits ReviewLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			reviewUnavailable(w, r, logg)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := createReviewInput(w, r, limits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.CreateReview(r.Context(), productID, userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "", "Review created successfully", review)
	}
}

type createReviewJSON struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Title   *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

func createReviewInput(w http.ResponseWriter, r *http.Request, limits ReviewLimits) (reviews.CreateReviewInput, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		var body createReviewJSON
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return reviews.CreateReviewInput{}, err
		}
		return reviews.CreateReviewInput{Rating: body.Rating, Title: body.Title, Comment: body.Comment}, nil
	}

	if err := parseMultipart(w, r, limits.MaxUploadBytes); err != nil {
		return reviews.CreateReviewInput{}, err
	}
	rating, err := strconv.Atoi(strings.TrimSpace(r.FormValue("rating")))
	if err != nil {
		return reviews.CreateReviewInput{}, pkgerrors.New(pkgerrors.CodeValidation, "rating must be an integer between 1 and 5")
	}
	files, err := readFormFiles(r, "files")
	if err != nil {
		return reviews.CreateReviewInput{}, err
	}
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return reviews.CreateReviewInput{}, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d files per review", limits.MaxFiles)
	}
	return reviews.CreateReviewInput{
		Rating:  rating,
		Title:   formValue(r, "title"),
		Comment: formValue(r, "comment"),
		Media:   toMediaFiles(files),
	}, nil
}

func ListReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			reviewUnavailable(w, r, logg)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListReviews(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Reviews retrieved successfully", list)
	}
}

func UpdateReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			reviewUnavailable(w, r, logg)
			return
		}
		reviewID, err := validators.ParseUUIDParam(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := reviewActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateReviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.UpdateReview(r.Context(), reviewID, actor, reviews.UpdateReviewInput{
			Rating:   body.Rating,
			Title:    body.Title,
			Comment:  body.Comment,
			IsActive: body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Review updated successfully", review)
	}
}

func DeleteReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			reviewUnavailable(w, r, logg)
			return
		}
		reviewID, err := validators.ParseUUIDParam(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := reviewActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteReview(r.Context(), reviewID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Review deleted successfully", nil)
	}
}

// AddReviewImages attaches one or more uploaded files to an existing review.
// Unlike creation, an upload failure fails the request.
func AddReviewImages(svc reviews.Service, limits ReviewLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			reviewUnavailable(w, r, logg)
			return
		}
		reviewID, err := validators.ParseUUIDParam(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := reviewActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := parseMultipart(w, r, limits.MaxUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		files, err := readFormFiles(r, "file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		more, err := readFormFiles(r, "files")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		files = append(files, more...)
		if len(files) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file is required"))
			return
		}
		if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d files per request", limits.MaxFiles))
			return
		}

		added, err := svc.AddImages(r.Context(), reviewID, actor, toMediaFiles(files))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "", "Images added successfully", added)
	}
}
