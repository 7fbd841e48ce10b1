package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/catalog-backend/api/controllers"
	"github.com/angelmondragon/catalog-backend/api/routes"
	"github.com/angelmondragon/catalog-backend/internal/auth"
	"github.com/angelmondragon/catalog-backend/internal/brands"
	"github.com/angelmondragon/catalog-backend/internal/categories"
	"github.com/angelmondragon/catalog-backend/internal/images"
	products "github.com/angelmondragon/catalog-backend/internal/products"
	"github.com/angelmondragon/catalog-backend/internal/reviews"
	"github.com/angelmondragon/catalog-backend/internal/sections"
	"github.com/angelmondragon/catalog-backend/internal/users"
	"github.com/angelmondragon/catalog-backend/internal/variants"
	"github.com/angelmondragon/catalog-backend/pkg/auth/session"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/instance"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/mailer"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
	"github.com/angelmondragon/catalog-backend/pkg/migrate"
	"github.com/angelmondragon/catalog-backend/pkg/redis"
	"github.com/angelmondragon/catalog-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, gcsClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	catalogMetrics := metrics.NewCatalogMetrics(registry)

	imageRepo := images.NewRepository(dbClient.DB())
	imageService, err := images.NewService(imageRepo, gcsClient, logg)
	if err != nil {
		return err
	}
	brandService, err := brands.NewService(brands.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		return err
	}
	categoryService, err := categories.NewService(categories.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		return err
	}
	productService, err := products.NewService(products.NewRepository(dbClient.DB()), dbClient, imageRepo)
	if err != nil {
		return err
	}
	variantService, err := variants.NewService(variants.NewRepository(dbClient.DB()), dbClient, imageRepo, catalogMetrics)
	if err != nil {
		return err
	}
	sectionService, err := sections.NewService(sections.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		return err
	}
	reviewService, err := reviews.NewService(reviews.NewRepository(dbClient.DB()), dbClient, imageService, imageRepo, catalogMetrics, logg)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		Users:          users.NewRepository(dbClient.DB()),
		OTPs:           auth.NewOTPRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Cooldowns:      redisClient,
		Mailer:         mailer.New(cfg.SMTP, logg),
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		OTPConfig:      cfg.OTP,
		StrictMail:     cfg.App.IsProd(),
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.Params{
			Config:         cfg,
			Logger:         logg,
			Sessions:       sessionManager,
			Redis:          redisClient,
			HTTPMetrics:    httpMetrics,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Ready: map[string]controllers.Pinger{
				"db":    dbClient,
				"redis": redisClient,
				"gcs":   gcsClient,
			},
			Auth:       authService,
			Brands:     brandService,
			Categories: categoryService,
			Images:     imageService,
			Products:   productService,
			Variants:   variantService,
			Sections:   sectionService,
			Reviews:    reviewService,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-stop.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}
