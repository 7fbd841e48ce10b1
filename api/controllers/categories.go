package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/categories"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type categoryRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Slug     *string `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type categoryPatchRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Slug     *string `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type subCategoryRequest struct {
	CategoryID uuid.UUID `json:"categoryId" validate:"required"`
	Name       string    `json:"name" validate:"required,max=255"`
	Slug       *string   `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	IsActive   *bool     `json:"isActive,omitempty"`
}

type subCategoryPatchRequest struct {
	CategoryID *uuid.UUID `json:"categoryId,omitempty"`
	Name       *string    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Slug       *string    `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	IsActive   *bool      `json:"isActive,omitempty"`
}

func categoryUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
}

func CreateCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		var body categoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.CreateCategory(r.Context(), categories.CategoryInput{Name: body.Name, Slug: body.Slug, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/categories/"+category.ID.String(), "Category created successfully", category)
	}
}

func ListCategories(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListCategories(r.Context(), validators.SearchTerm(r), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Categories retrieved successfully", result)
	}
}

func GetCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.GetCategory(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Category retrieved successfully", category)
	}
}

func UpdateCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body categoryPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.UpdateCategory(r.Context(), id, categories.CategoryPatch{Name: body.Name, Slug: body.Slug, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Category updated successfully", category)
	}
}

func DeleteCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCategory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Category deleted successfully", nil)
	}
}

func CreateSubCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		var body subCategoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.CreateSubCategory(r.Context(), categories.SubCategoryInput{
			CategoryID: body.CategoryID,
			Name:       body.Name,
			Slug:       body.Slug,
			IsActive:   body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/sub-categories/"+sub.ID.String(), "Sub-category created successfully", sub)
	}
}

// ListSubCategories supports ?search, ?categoryId and optional page/limit.
func ListSubCategories(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := validators.ParseQueryUUID(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := categories.SubCategoryFilter{
			Search:     validators.SearchTerm(r),
			CategoryID: categoryID,
		}
		result, err := svc.ListSubCategories(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Sub-categories retrieved successfully", result)
	}
}

func ListSubCategoriesByCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subs, err := svc.ListByCategory(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Sub-categories retrieved successfully", subs)
	}
}

func GetSubCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.GetSubCategory(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Sub-category retrieved successfully", sub)
	}
}

func UpdateSubCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body subCategoryPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.UpdateSubCategory(r.Context(), id, categories.SubCategoryPatch{
			CategoryID: body.CategoryID,
			Name:       body.Name,
			Slug:       body.Slug,
			IsActive:   body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Sub-category updated successfully", sub)
	}
}

func DeleteSubCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			categoryUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteSubCategory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Sub-category deleted successfully", nil)
	}
}
