package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

type memoryReplayStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryReplayStore() *memoryReplayStore {
	return &memoryReplayStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryReplayStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryReplayStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryReplayStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryReplayStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return nil
}

func (m *memoryReplayStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func keyedRequest(method, path, pattern, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload.Error.Code
}

func TestReplayTTL(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/v1/products", createReplayTTL, true},
		{http.MethodPost, "/api/v1/products/{productId}/reviews", createReplayTTL, true},
		{http.MethodPost, "/api/v1/products/0b7e/reviews", createReplayTTL, true},
		{http.MethodPost, "/api/v1/products/{id}/variants", defaultReplayTTL, true},
		{http.MethodPost, "/api/v1/sections/home/items", defaultReplayTTL, true},
		{http.MethodPost, "/api/v1/products//variants", 0, false},
		{http.MethodPatch, "/api/v1/products/{id}", 0, false},
		{http.MethodPost, "/api/v1/auth/login", 0, false},
		{http.MethodPost, "", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := replayTTL(tc.method, tc.path)
		assert.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyWithoutKeyAlwaysRuns(t *testing.T) {
	store := newMemoryReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/brands", "/api/v1/brands", "", `{"name":"Acme"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysCompletedCreate(t *testing.T) {
	store := newMemoryReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/api/v1/products/p-1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"p-1"}}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/v1/products", "/api/v1/products", "create-1", `{"name":"Tee"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	for key, ttl := range store.ttls {
		assert.Equal(t, createReplayTTL, ttl, key)
	}

	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, keyedRequest(http.MethodPost, "/api/v1/products", "/api/v1/products", "create-1", `{"name":"Tee"}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(ReplayedHeader))
	assert.Equal(t, "/api/v1/products/p-1", replay.Header().Get("Location"))
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"p-1"}}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsDifferentPayload(t *testing.T) {
	store := newMemoryReplayStore()
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/brands", "/api/v1/brands", "k", `{"name":"Acme"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/brands", "/api/v1/brands", "k", `{"name":"Other"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec.Body))
}

func TestIdempotencyConflictsWhileInFlight(t *testing.T) {
	store := newMemoryReplayStore()
	var inner http.Handler
	outer := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a duplicate arrives before the first request has finished
		rec := httptest.NewRecorder()
		inner.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/sections", "/api/v1/sections", "dup", `{"key":"home"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec.Body))
		w.WriteHeader(http.StatusCreated)
	}))
	inner = outer

	rec := httptest.NewRecorder()
	outer.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/sections", "/api/v1/sections", "dup", `{"key":"home"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryReplayStore()
	status := http.StatusServiceUnavailable
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	h.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/products", "/api/v1/products", "retry", `{}`))
	assert.Empty(t, store.data)

	status = http.StatusCreated
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/products", "/api/v1/products", "retry", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsMalformedKey(t *testing.T) {
	h := Idempotency(newMemoryReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, key := range []string{strings.Repeat("a", maxIdempotencyKeyLength+1), "has space", "tab\tkey"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/brands", "/api/v1/brands", key, `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, key)
	}
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	store := newMemoryReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"u-1", "u-2"} {
		req := keyedRequest(http.MethodPost, "/api/v1/products/p/reviews", "/api/v1/products/{productId}/reviews", "same", `{"rating":5}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 2)
}
