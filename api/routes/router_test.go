package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	products "github.com/angelmondragon/catalog-backend/internal/products"
	pkgauth "github.com/angelmondragon/catalog-backend/pkg/auth"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

type allowSessions struct{}

func (allowSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubProducts struct {
	products.Service
	privileged bool
}

func (s *stubProducts) ListProducts(_ context.Context, input products.ListProductsInput) (pagination.Page[products.ProductSummary], error) {
	s.privileged = input.Privileged
	return pagination.NewPage([]products.ProductSummary{}, input.Pagination, 0), nil
}

func newTestRouter(t *testing.T, productSvc products.Service) (http.Handler, config.JWTConfig) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev", RequestTimeout: time.Second, CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "catalog", ExpirationMinutes: 15},
	}
	reg := prometheus.NewRegistry()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	router := NewRouter(Params{
		Config:         cfg,
		Logger:         logg,
		Sessions:       allowSessions{},
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Products:       productSvc,
	})
	return router, cfg.JWT
}

func bearer(t *testing.T, cfg config.JWTConfig, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New(), Role: role, JTI: uuid.NewString()})
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, &stubProducts{})

	rec := serve(router, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = serve(router, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}

func TestRouterProductListingPrivilege(t *testing.T) {
	svc := &stubProducts{}
	router, jwtCfg := newTestRouter(t, svc)

	rec := serve(router, http.MethodGet, "/api/v1/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, svc.privileged)

	rec = serve(router, http.MethodGet, "/api/v1/products", bearer(t, jwtCfg, enums.UserRoleCustomer))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, svc.privileged)
}

func TestRouterAdminRoutesAreGuarded(t *testing.T) {
	router, jwtCfg := newTestRouter(t, &stubProducts{})

	rec := serve(router, http.MethodPost, "/api/v1/brands", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodPost, "/api/v1/brands", bearer(t, jwtCfg, enums.UserRoleCustomer))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodDelete, "/api/v1/reviews/"+uuid.NewString(), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
