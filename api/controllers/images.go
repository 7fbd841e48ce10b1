package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/images"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

// UploadImage accepts multipart fields file, moduleType, moduleId and an optional type.
func UploadImage(svc images.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image service unavailable"))
			return
		}
		if err := parseMultipart(w, r, maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		files, err := readFormFiles(r, "file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(files) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file is required"))
			return
		}

		input, err := uploadInputFromForm(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.FileName = files[0].FileName
		input.ContentType = files[0].ContentType
		input.Data = files[0].Data

		image, err := svc.Upload(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, "", "Image uploaded successfully", image)
	}
}

func uploadInputFromForm(r *http.Request) (images.UploadInput, error) {
	var input images.UploadInput

	moduleType, err := enums.ParseModuleType(strings.TrimSpace(r.FormValue("moduleType")))
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid moduleType")
	}
	moduleID, err := uuid.Parse(strings.TrimSpace(r.FormValue("moduleId")))
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid moduleId")
	}
	input.ModuleType = moduleType
	input.ModuleID = moduleID

	if raw := strings.TrimSpace(r.FormValue("type")); raw != "" {
		imageType, err := enums.ParseImageType(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type")
		}
		input.Type = imageType
	}
	return input, nil
}

// ListImages requires ?moduleType and ?moduleId.
func ListImages(svc images.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image service unavailable"))
			return
		}
		moduleType, err := enums.ParseModuleType(strings.TrimSpace(r.URL.Query().Get("moduleType")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid moduleType"))
			return
		}
		moduleID, err := validators.ParseQueryUUID(r, "moduleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if moduleID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "moduleId is required"))
			return
		}
		list, err := svc.ListByModule(r.Context(), moduleType, *moduleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Images retrieved successfully", list)
	}
}
