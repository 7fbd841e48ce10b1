package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/sections"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type sectionRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Key      string `json:"key" validate:"required,max=100"`
	IsActive *bool  `json:"isActive,omitempty"`
}

type sectionPatchRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Key      *string `json:"key,omitempty" validate:"omitempty,min=1,max=100"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type sectionItemRequest struct {
	ProductID *uuid.UUID `json:"productId,omitempty"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	SortOrder *int       `json:"sortOrder,omitempty"`
	IsActive  *bool      `json:"isActive,omitempty"`
}

type sectionItemPatchRequest struct {
	SortOrder *int  `json:"sortOrder,omitempty"`
	IsActive  *bool `json:"isActive,omitempty"`
}

func sectionUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "section service unavailable"))
}

func CreateSection(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		var body sectionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		section, err := svc.CreateSection(r.Context(), sections.CreateSectionInput{Name: body.Name, Key: body.Key, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/sections/"+section.Key, "Section created successfully", section)
	}
}

func ListSections(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		list, err := svc.ListSections(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Sections retrieved successfully", list)
	}
}

// ResolveSection returns an active section by key with only its live items.
// The key shares the {id} path segment with the id-based section routes.
func ResolveSection(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		resolved, err := svc.ResolveSection(r.Context(), validators.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section retrieved successfully", resolved)
	}
}

func UpdateSection(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sectionPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		section, err := svc.UpdateSection(r.Context(), id, sections.UpdateSectionInput{Name: body.Name, Key: body.Key, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section updated successfully", section)
	}
}

func DeleteSection(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteSection(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section deleted successfully", nil)
	}
}

func CreateSectionItem(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		sectionID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sectionItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), sectionID, sections.CreateItemInput{
			ProductID: body.ProductID,
			VariantID: body.VariantID,
			SortOrder: body.SortOrder,
			IsActive:  body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "/api/v1/section-items/"+item.ID.String(), "Section item created successfully", item)
	}
}

// ListSectionItems shows every stored item with its live flag when an admin
// passes includeInactive=true, and only live active items otherwise.
func ListSectionItems(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		sectionID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive := false
		if raw := strings.TrimSpace(r.URL.Query().Get("includeInactive")); raw != "" {
			includeInactive, err = strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "includeInactive must be a boolean"))
				return
			}
		}
		if includeInactive && !isAdmin(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
			return
		}
		items, err := svc.ListItems(r.Context(), sectionID, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section items retrieved successfully", items)
	}
}

func GetSectionItem(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section item retrieved successfully", item)
	}
}

func UpdateSectionItem(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sectionItemPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.UpdateItem(r.Context(), id, sections.UpdateItemInput{SortOrder: body.SortOrder, IsActive: body.IsActive})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section item updated successfully", item)
	}
}

func DeleteSectionItem(svc sections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sectionUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteItem(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Section item deleted successfully", nil)
	}
}
