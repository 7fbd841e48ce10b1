package middleware

import (
	"context"
	"mime"
	"net/http"
	"time"
)

// Timeout bounds every request with a context deadline. Multipart bodies
// (image and review uploads) get the longer upload budget. Store calls that
// outlive the deadline surface as dependency errors.
func Timeout(d, upload time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := d
			if upload > limit && isMultipart(r) {
				limit = upload
			}
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
