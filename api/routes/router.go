package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/catalog-backend/api/controllers"
	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/internal/auth"
	"github.com/angelmondragon/catalog-backend/internal/brands"
	"github.com/angelmondragon/catalog-backend/internal/categories"
	"github.com/angelmondragon/catalog-backend/internal/images"
	products "github.com/angelmondragon/catalog-backend/internal/products"
	"github.com/angelmondragon/catalog-backend/internal/reviews"
	"github.com/angelmondragon/catalog-backend/internal/sections"
	"github.com/angelmondragon/catalog-backend/internal/variants"
	"github.com/angelmondragon/catalog-backend/pkg/auth/session"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
	"github.com/angelmondragon/catalog-backend/pkg/redis"
)

// Params carries everything the HTTP surface is built from.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	Sessions       session.AccessSessionChecker
	Redis          *redis.Client
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Ready          map[string]controllers.Pinger

	Auth       auth.Service
	Brands     brands.Service
	Categories categories.Service
	Images     images.Service
	Products   products.Service
	Variants   variants.Service
	Sections   sections.Service
	Reviews    reviews.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Metrics(p.HTTPMetrics),
		middleware.Timeout(cfg.App.RequestTimeout, cfg.App.UploadTimeout),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	otpPolicy := middleware.NewAuthRateLimitPolicy(
		"otp",
		cfg.AuthRateLimit.OTPWindow,
		cfg.AuthRateLimit.OTPIPLimit,
		cfg.AuthRateLimit.OTPEmailLimit,
	)

	rateLimit := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if p.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AuthRateLimit(policy, p.Redis, logg)
	}

	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, p.Sessions, logg)
	requireAdmin := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})
	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	maxUpload := cfg.Media.MaxUploadBytes()
	reviewLimits := controllers.ReviewLimits{MaxUploadBytes: maxUpload, MaxFiles: cfg.Media.MaxReviewFiles}

	r.Route("/api/v1", func(r chi.Router) {
		var idempotencyStore redis.IdempotencyStore
		if p.Redis != nil {
			idempotencyStore = p.Redis
		}

		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimit(registerPolicy), middleware.Idempotency(idempotencyStore, logg)).
				Post("/register", controllers.AuthRegister(p.Auth, logg))
			r.With(rateLimit(loginPolicy)).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.With(rateLimit(otpPolicy)).Post("/verify-email", controllers.AuthVerifyEmail(p.Auth, logg))
			r.With(rateLimit(otpPolicy)).Post("/resend-otp", controllers.AuthResendOTP(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(p.Auth, logg))
		})

		// public reads; a valid token widens what some listings return
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/brands", controllers.ListBrands(p.Brands, logg))
			r.Get("/brands/{id}", controllers.GetBrand(p.Brands, logg))

			r.Get("/categories", controllers.ListCategories(p.Categories, logg))
			r.Get("/categories/sub-categories", controllers.ListSubCategories(p.Categories, logg))
			r.Get("/categories/{id}", controllers.GetCategory(p.Categories, logg))
			r.Get("/categories/{id}/sub", controllers.ListSubCategoriesByCategory(p.Categories, logg))
			r.Get("/sub-categories/{id}", controllers.GetSubCategory(p.Categories, logg))

			r.Get("/images", controllers.ListImages(p.Images, logg))

			r.Get("/products", controllers.ListProducts(p.Products, logg))
			r.Get("/products/{id}", controllers.GetProduct(p.Products, logg))
			r.Get("/products/{id}/variants", controllers.ListVariants(p.Variants, logg))
			r.Get("/variants/detail", controllers.VariantDetail(p.Variants, logg))
			r.Get("/variants/{id}", controllers.GetVariant(p.Variants, logg))

			r.Get("/sections", controllers.ListSections(p.Sections, logg))
			r.Get("/sections/{id}", controllers.ResolveSection(p.Sections, logg))
			r.Get("/sections/{id}/items", controllers.ListSectionItems(p.Sections, logg))
			r.Get("/section-items/{id}", controllers.GetSectionItem(p.Sections, logg))

			r.Get("/products/{productId}/reviews", controllers.ListReviews(p.Reviews, logg))
		})

		// reviews need any signed-in user; ownership is checked by the service
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Post("/products/{productId}/reviews", controllers.CreateReview(p.Reviews, reviewLimits, logg))
			r.Patch("/reviews/{reviewId}", controllers.UpdateReview(p.Reviews, logg))
			r.Delete("/reviews/{reviewId}", controllers.DeleteReview(p.Reviews, logg))
			r.Post("/reviews/{reviewId}/images", controllers.AddReviewImages(p.Reviews, reviewLimits, logg))
		})

		// catalog curation is admin only
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Post("/brands", controllers.CreateBrand(p.Brands, logg))
			r.Patch("/brands/{id}", controllers.UpdateBrand(p.Brands, logg))
			r.Delete("/brands/{id}", controllers.DeleteBrand(p.Brands, logg))

			r.Post("/categories", controllers.CreateCategory(p.Categories, logg))
			r.Patch("/categories/{id}", controllers.UpdateCategory(p.Categories, logg))
			r.Delete("/categories/{id}", controllers.DeleteCategory(p.Categories, logg))
			r.Post("/categories/sub-categories", controllers.CreateSubCategory(p.Categories, logg))
			r.Patch("/sub-categories/{id}", controllers.UpdateSubCategory(p.Categories, logg))
			r.Delete("/sub-categories/{id}", controllers.DeleteSubCategory(p.Categories, logg))

			r.Post("/images/upload", controllers.UploadImage(p.Images, maxUpload, logg))

			r.Post("/products", controllers.CreateProduct(p.Products, logg))
			r.Patch("/products/{id}", controllers.UpdateProduct(p.Products, logg))
			r.Patch("/products/{id}/status", controllers.UpdateProductStatus(p.Products, logg))
			r.Delete("/products/{id}", controllers.DeleteProduct(p.Products, logg))
			r.Post("/products/{id}/variants", controllers.CreateVariant(p.Variants, logg))

			r.Patch("/variants/{id}", controllers.UpdateVariant(p.Variants, logg))
			r.Delete("/variants/{id}", controllers.DeleteVariant(p.Variants, logg))
			r.Patch("/variants/{id}/set-default", controllers.SetDefaultVariant(p.Variants, logg))

			r.Post("/sections", controllers.CreateSection(p.Sections, logg))
			r.Patch("/sections/{id}", controllers.UpdateSection(p.Sections, logg))
			r.Delete("/sections/{id}", controllers.DeleteSection(p.Sections, logg))
			r.Post("/sections/{id}/items", controllers.CreateSectionItem(p.Sections, logg))
			r.Patch("/section-items/{id}", controllers.UpdateSectionItem(p.Sections, logg))
			r.Delete("/section-items/{id}", controllers.DeleteSectionItem(p.Sections, logg))
		})
	})

	return r
}
