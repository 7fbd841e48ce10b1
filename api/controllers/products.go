package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	productsvc "github.com/angelmondragon/catalog-backend/internal/products"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type createProductRequest struct {
	Name          string    `json:"name" validate:"required,max=255"`
	Description   *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	BrandID       uuid.UUID `json:"brandId" validate:"required"`
	SubCategoryID uuid.UUID `json:"subCategoryId" validate:"required"`
}

type updateProductRequest struct {
	Name          *string    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	BrandID       *uuid.UUID `json:"brandId,omitempty"`
	SubCategoryID *uuid.UUID `json:"subCategoryId,omitempty"`
}

type productStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active inactive"`
}

func productUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
}

// CreateProduct records the caller as creator and seller. New products start as drafts.
func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productUnavailable(w, r, logg)
			return
		}
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), userID, productsvc.CreateProductInput{
			Name:          body.Name,
			Description:   body.Description,
			BrandID:       body.BrandID,
			SubCategoryID: body.SubCategoryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/products/"+product.ID.String(), "Product created successfully", product)
	}
}

// ListProducts serves the public catalog. Authenticated callers also see
// draft and inactive products.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productUnavailable(w, r, logg)
			return
		}
		input, err := listProductsInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Products retrieved successfully", result)
	}
}

func listProductsInput(r *http.Request) (productsvc.ListProductsInput, error) {
	var input productsvc.ListProductsInput

	page, err := validators.ParsePagination(r)
	if err != nil {
		return input, err
	}
	brandID, err := validators.ParseQueryUUID(r, "brandId")
	if err != nil {
		return input, err
	}
	subCategoryID, err := validators.ParseQueryUUID(r, "subCategoryId")
	if err != nil {
		return input, err
	}
	minPrice, err := validators.ParseQueryDecimal(r, "minPrice")
	if err != nil {
		return input, err
	}
	maxPrice, err := validators.ParseQueryDecimal(r, "maxPrice")
	if err != nil {
		return input, err
	}

	input.Pagination = page
	input.Filters = productsvc.ProductListFilters{
		Search:        validators.SearchTerm(r),
		BrandID:       brandID,
		SubCategoryID: subCategoryID,
		MinPrice:      minPrice,
		MaxPrice:      maxPrice,
	}
	input.Privileged = middleware.UserIDFromContext(r.Context()) != ""
	return input, nil
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProductDetail(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Product retrieved successfully", product)
	}
}

func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), id, productsvc.UpdateProductInput{
			Name:          body.Name,
			Description:   body.Description,
			BrandID:       body.BrandID,
			SubCategoryID: body.SubCategoryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Product updated successfully", product)
	}
}

func UpdateProductStatus(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body productStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseProductStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		product, err := svc.UpdateStatus(r.Context(), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Product status updated successfully", product)
	}
}

func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			productUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Product deleted successfully", nil)
	}
}
