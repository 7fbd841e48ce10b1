package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/catalog-backend/api/responses"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/catalog-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 128

	defaultReplayTTL = 24 * time.Hour
	createReplayTTL  = 7 * 24 * time.Hour
	inFlightTTL      = 30 * time.Second
)

const (
	recordPending  = "pending"
	recordComplete = "complete"
)

// replayedHeaders are copied from the original response into the stored record.
var replayedHeaders = []string{"Content-Type", "Location"}

type replayRule struct {
	method   string
	segments []string
	ttl      time.Duration
}

func rule(method, template string, ttl time.Duration) replayRule {
	return replayRule{method: method, segments: splitPath(template), ttl: ttl}
}

// Every catalog create endpoint replays a keyed request. Product and review
// creation keep their records for a week.
var replayRules = []replayRule{
	rule(http.MethodPost, "/api/v1/auth/register", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/images/upload", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/brands", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/categories", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/categories/sub-categories", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/sections", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/sections/{id}/items", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/products/{id}/variants", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/reviews/{reviewId}/images", defaultReplayTTL),
	rule(http.MethodPost, "/api/v1/products", createReplayTTL),
	rule(http.MethodPost, "/api/v1/products/{productId}/reviews", createReplayTTL),
}

type replayRecord struct {
	State       string            `json:"state"`
	RequestHash string            `json:"request_hash"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on the create routes listed in replayRules. A request
// racing an unfinished one with the same key gets a conflict. Server errors
// release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ttl, ok := replayTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !validIdempotencyKey(clientKey) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid Idempotency-Key header").
					WithDetails(map[string]any{"maxLength": maxIdempotencyKeyLength}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			fingerprint := requestFingerprint(r, body)
			key := store.IdempotencyKey(replayScope(r), clientKey)

			pending, _ := json.Marshal(replayRecord{State: recordPending, RequestHash: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(pending), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(w, r, store, key, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrDefault()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}

			record := replayRecord{
				State:       recordComplete,
				RequestHash: fingerprint,
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			}
			for _, name := range replayedHeaders {
				if value := capture.Header().Get(name); value != "" {
					if record.Headers == nil {
						record.Headers = make(map[string]string, len(replayedHeaders))
					}
					record.Headers[name] = value
				}
			}
			payload, err := json.Marshal(record)
			if err != nil {
				logg.Error(ctx, "idempotency.encode_failed", err)
				return
			}
			if err := store.Set(ctx, key, string(payload), ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func replayExisting(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released the key between our claim and read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
		return
	}
	if record.State != recordComplete {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}

	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency body"))
		return
	}
	for name, value := range record.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
}

func validIdempotencyKey(key string) bool {
	if len(key) > maxIdempotencyKeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return false
		}
	}
	return true
}

// requestFingerprint covers the content type as well as the body so a JSON
// review and a multipart review under one key are told apart.
func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Header.Get("Content-Type")))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replayScope(r *http.Request) string {
	user := UserIDFromContext(r.Context())
	if user == "" {
		user = "anonymous"
	}
	return user + "|" + r.Method + "|" + r.URL.Path
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	// mounted sub-routers report a partial "/*" pattern before their own routing runs
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

// replayTTL matches either a chi route pattern or a concrete request path
// against replayRules. Template segments in braces match any single segment.
func replayTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	segments := splitPath(path)
	for _, rr := range replayRules {
		if rr.method == method && segmentsMatch(rr.segments, segments) {
			return rr.ttl, true
		}
	}
	return 0, false
}

func segmentsMatch(template, path []string) bool {
	if len(template) != len(path) {
		return false
	}
	for i, seg := range template {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrDefault() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
