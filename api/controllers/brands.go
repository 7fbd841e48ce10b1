package controllers

import (
	"net/http"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/brands"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type brandRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Slug     *string `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type brandPatchRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Slug     *string `json:"slug,omitempty" validate:"omitempty,slug,max=255"`
	IsActive *bool   `json:"isActive,omitempty"`
}

func brandUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "brand service unavailable"))
}

func CreateBrand(svc brands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			brandUnavailable(w, r, logg)
			return
		}
		var body brandRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brand, err := svc.CreateBrand(r.Context(), brands.CreateBrandInput{Name: body.Name, Slug: body.Slug, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/brands/"+brand.ID.String(), "Brand created successfully", brand)
	}
}

// ListBrands supports ?search plus optional page/limit.
func ListBrands(svc brands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			brandUnavailable(w, r, logg)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListBrands(r.Context(), brands.ListBrandsInput{
			Search: validators.SearchTerm(r),
			Page:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Brands retrieved successfully", result)
	}
}

func GetBrand(svc brands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			brandUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brand, err := svc.GetBrand(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Brand retrieved successfully", brand)
	}
}

func UpdateBrand(svc brands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			brandUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body brandPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brand, err := svc.UpdateBrand(r.Context(), id, brands.UpdateBrandInput{Name: body.Name, Slug: body.Slug, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Brand updated successfully", brand)
	}
}

func DeleteBrand(svc brands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			brandUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteBrand(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Brand deleted successfully", nil)
	}
}
