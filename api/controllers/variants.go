package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/variants"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type createVariantRequest struct {
	SKU        string           `json:"sku" validate:"required,max=100"`
	Attributes map[string]any   `json:"attributes,omitempty"`
	Price      decimal.Decimal  `json:"price"`
	MRP        *decimal.Decimal `json:"mrp,omitempty"`
	Stock      *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	IsActive   *bool            `json:"isActive,omitempty"`
	IsDefault  *bool            `json:"isDefault,omitempty"`
}

type updateVariantRequest struct {
	SKU        *string          `json:"sku,omitempty" validate:"omitempty,min=1,max=100"`
	Attributes map[string]any   `json:"attributes,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	MRP        *decimal.Decimal `json:"mrp,omitempty"`
	Stock      *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	IsActive   *bool            `json:"isActive,omitempty"`
}

func variantUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "variant service unavailable"))
}

func CreateVariant(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createVariantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.CreateVariant(r.Context(), productID, variants.CreateVariantInput{
			SKU:        body.SKU,
			Attributes: body.Attributes,
			Price:      body.Price,
			MRP:        body.MRP,
			Stock:      body.Stock,
			IsActive:   body.IsActive,
			IsDefault:  body.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/variants/"+variant.ID.String(), "Variant created successfully", variant)
	}
}

func ListVariants(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListVariants(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Variants retrieved successfully", list)
	}
}

// VariantDetail resolves ?variantId directly, or the default of ?productId.
func VariantDetail(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		productID, err := validators.ParseQueryUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseQueryUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if productID == nil && variantID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeBadRequest, "either productId or variantId must be provided"))
			return
		}
		detail, err := svc.GetVariantDetail(r.Context(), productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Variant detail retrieved successfully", detail)
	}
}

func GetVariant(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.GetVariant(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Variant retrieved successfully", variant)
	}
}

func UpdateVariant(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateVariantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.UpdateVariant(r.Context(), id, variants.UpdateVariantInput{
			SKU:        body.SKU,
			Attributes: body.Attributes,
			Price:      body.Price,
			MRP:        body.MRP,
			Stock:      body.Stock,
			IsActive:   body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Variant updated successfully", variant)
	}
}

func DeleteVariant(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteVariant(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Variant deleted successfully", nil)
	}
}

func SetDefaultVariant(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			variantUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.SetDefault(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Default variant updated successfully", variant)
	}
}
