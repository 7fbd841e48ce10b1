package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the storefront and admin origins call the API with credentials.
// Location, Retry-After and the replay marker are readable from browser code.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Location", "Retry-After", ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler
}
