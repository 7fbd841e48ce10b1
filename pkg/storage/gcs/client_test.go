package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/catalog-backend/pkg/config"
)

func staticToken() *tokenSource {
	return &tokenSource{fetch: func(context.Context) (string, time.Time, error) {
		return "token", time.Now().Add(time.Hour), nil
	}}
}

func testClient(srv *httptest.Server, tokens tokenProvider) *Client {
	return &Client{
		httpClient:    srv.Client(),
		defaultBucket: "bucket",
		publicBaseURL: "https://cdn.example.com",
		apiBase:       srv.URL,
		tokens:        tokens,
	}
}

func TestPutUploadsAndReturnsPublicURL(t *testing.T) {
	t.Parallel()

	var got struct{ method, path, name, ctype, auth, body string }
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.method, got.path, got.body = r.Method, r.URL.Path, string(b)
		got.name = r.URL.Query().Get("name")
		got.ctype, got.auth = r.Header.Get("Content-Type"), r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	url, err := testClient(srv, staticToken()).Put(context.Background(), "images/abc-1.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/bucket/images/abc-1.png", url)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/upload/storage/v1/b/bucket/o", got.path)
	assert.Equal(t, "images/abc-1.png", got.name)
	assert.Equal(t, "image/png", got.ctype)
	assert.Equal(t, "Bearer token", got.auth)
	assert.Equal(t, "png-bytes", got.body)
}

func TestPutSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv, staticToken()).Put(context.Background(), "images/x.png", []byte("x"), "image/png")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "upload", apiErr.Op)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPutRequiresKeyAndConfiguration(t *testing.T) {
	client := &Client{defaultBucket: "bucket", tokens: staticToken()}
	_, err := client.Put(context.Background(), " ", nil, "")
	require.Error(t, err)

	var empty *Client
	_, err = empty.Put(context.Background(), "images/a.png", nil, "")
	require.ErrorIs(t, err, errNotConfigured)
}

func TestDeleteObjectTreatsNotFoundAsSuccess(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	require.NoError(t, testClient(srv, staticToken()).DeleteObject(context.Background(), "", "images/missing.png"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/storage/v1/b/bucket/o/images%2Fmissing.png", gotPath)
}

func TestDeleteObjectReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(srv, staticToken()).DeleteObject(context.Background(), "other", "images/a.png")
	require.Error(t, err)
}

func TestEmulatorEndpointSkipsAuth(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), config.GCSConfig{BucketName: "catalog", Endpoint: srv.URL + "/"}, config.GCPConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, sawAuth)
	assert.Equal(t, srv.URL+"/catalog/images/a.png", client.PublicURL("images/a.png"))
	require.NoError(t, client.Close())
}

func TestTokenSourceCachesUntilNearExpiry(t *testing.T) {
	calls := 0
	ts := &tokenSource{fetch: func(context.Context) (string, time.Time, error) {
		calls++
		return "tok", time.Now().Add(time.Hour), nil
	}}
	for i := 0; i < 3; i++ {
		tok, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	}
	assert.Equal(t, 1, calls)

	ts.expiry = time.Now().Add(30 * time.Second)
	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestServiceAccountAssertionIsVerifiable(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := parsePrivateKey(string(pkcs1))
	require.NoError(t, err)
	assert.Equal(t, key.N, parsed.N)

	sa := serviceAccount{ClientEmail: "svc@catalog.iam.gserviceaccount.com", TokenURI: defaultTokenURI}
	signed, err := signAssertion(sa, parsed, time.Now())
	require.NoError(t, err)

	tok, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithAudience(defaultTokenURI))
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, sa.ClientEmail, claims["iss"])
	assert.Equal(t, storageScope, claims["scope"])

	_, err = parsePrivateKey("not pem")
	require.Error(t, err)
}

func TestServiceAccountExchange(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	var grant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		grant = r.PostForm.Get("grant_type")
		_, _ = w.Write([]byte(`{"access_token":"ya29.x","expires_in":3600}`))
	}))
	defer srv.Close()

	creds := `{"client_email":"svc@x","private_key":` + jsonString(string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}))) + `,"token_uri":"` + srv.URL + `"}`
	ts, err := serviceAccountSource(srv.Client(), []byte(creds))
	require.NoError(t, err)

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya29.x", tok)
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", grant)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
