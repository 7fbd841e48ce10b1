package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func (f *fakeRateStore) RetryAfter(context.Context, string) (time.Duration, error) {
	return 42 * time.Second, nil
}

func authRequest(path, remote, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func TestAuthRateLimit(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name       string
		policy     AuthRateLimitPolicy
		path       string
		remote     string
		body       string
		attempts   int
		wantStatus []int
		wantScope  string
	}{
		{
			name:       "email window",
			policy:     NewAuthRateLimitPolicy("login", time.Minute, 0, 2),
			path:       "/api/v1/auth/login",
			remote:     "1.2.3.4:5678",
			body:       `{"email":"Blocked@Example.com ","password":"secret"}`,
			attempts:   3,
			wantStatus: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
			wantScope:  "email:login:" + hashValue("blocked@example.com"),
		},
		{
			name:       "ip window",
			policy:     NewAuthRateLimitPolicy("register", time.Minute, 1, 0),
			path:       "/api/v1/auth/register",
			remote:     "5.6.7.8:1234",
			body:       `{"email":"foo@example.com","password":"secret"}`,
			attempts:   2,
			wantStatus: []int{http.StatusOK, http.StatusTooManyRequests},
			wantScope:  "ip:register:5.6.7.8",
		},
		{
			name:       "disabled policy",
			policy:     NewAuthRateLimitPolicy("otp", 0, 1, 1),
			path:       "/api/v1/auth/verify-otp",
			remote:     "5.6.7.8:1234",
			body:       `{"email":"foo@example.com"}`,
			attempts:   3,
			wantStatus: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeRateStore()
			h := AuthRateLimit(tc.policy, store, nil)(okHandler)

			for i := 0; i < tc.attempts; i++ {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, authRequest(tc.path, tc.remote, tc.body))
				require.Equal(t, tc.wantStatus[i], rec.Code, "attempt %d", i+1)
				if rec.Code == http.StatusTooManyRequests {
					assert.Equal(t, "42", rec.Header().Get("Retry-After"))
					assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, rec.Body))
				}
			}
			if tc.wantScope != "" {
				assert.Contains(t, store.counts, tc.wantScope)
			} else {
				assert.Empty(t, store.counts)
			}
		})
	}
}

func TestAuthRateLimitPassesBodyThrough(t *testing.T) {
	const body = `{"email":"tester@example.com","password":"secret"}`
	var seen string
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 2, 2), newFakeRateStore(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen = string(raw)
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authRequest("/api/v1/auth/login", "1.2.3.4:5678", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seen)
}

func TestAuthRateLimitOversizedBodySkipsEmail(t *testing.T) {
	store := newFakeRateStore()
	payload := `{"email":"big@example.com","password":"` + strings.Repeat("x", maxSniffBytes) + `"}`
	var seen int
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 1), store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			seen = len(raw)
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authRequest("/api/v1/auth/login", "1.2.3.4:5678", payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(payload), seen)
	assert.Empty(t, store.counts)
}

func TestAuthRateLimitStoreFailure(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 0), store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authRequest("/api/v1/auth/login", "1.2.3.4:5678", `{}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec.Body))
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 9.9.9.9 , 10.0.0.1"}, "1.1.1.1:80", "9.9.9.9"},
		{"real ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "1.1.1.1:80", "8.8.8.8"},
		{"remote addr", nil, "1.1.1.1:80", "1.1.1.1"},
		{"bare remote", nil, "unix", "unix"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}
