package controllers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

const multipartMemory = 8 << 20

func userIDFromContext(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func isAdmin(ctx context.Context) bool {
	return middleware.RoleFromContext(ctx) == string(enums.UserRoleAdmin)
}

type uploadedFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// parseMultipart bounds the body at maxBytes and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "upload exceeds size limit")
		}
		return pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "invalid multipart form")
	}
	return nil
}

func readFormFiles(r *http.Request, field string) ([]uploadedFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	files := make([]uploadedFile, 0, len(headers))
	for _, header := range headers {
		file, err := readFileHeader(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func readFileHeader(header *multipart.FileHeader) (uploadedFile, error) {
	f, err := header.Open()
	if err != nil {
		return uploadedFile{}, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "open upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return uploadedFile{}, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "read upload")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return uploadedFile{FileName: header.Filename, ContentType: contentType, Data: data}, nil
}

func formValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
