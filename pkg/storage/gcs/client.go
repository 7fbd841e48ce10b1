package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

const (
	googleAPIBase  = "https://storage.googleapis.com"
	requestTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
	maxErrorBody   = 2048
)

var errNotConfigured = errors.New("gcs: client not configured")

// APIError is a non-2xx answer from the storage JSON API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gcs %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gcs %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client stores catalog images in one bucket through the GCS JSON API.
type Client struct {
	httpClient    *http.Client
	defaultBucket string
	publicBaseURL string
	apiBase       string
	tokens        tokenProvider
	logg          *logger.Logger
}

// NewClient picks credentials from gcp (inline JSON, then a key file, then
// the metadata server) unless cfg.Endpoint points at an emulator, and pings
// the bucket before returning.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	httpClient := &http.Client{Timeout: requestTimeout}

	c := &Client{
		httpClient:    httpClient,
		defaultBucket: cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		apiBase:       googleAPIBase,
		logg:          logg,
	}
	if endpoint := strings.TrimRight(cfg.Endpoint, "/"); endpoint != "" {
		c.apiBase = endpoint
		c.tokens = anonymous{}
		if c.publicBaseURL == "" || c.publicBaseURL == googleAPIBase {
			c.publicBaseURL = endpoint
		}
	} else {
		tokens, err := credentialsFor(httpClient, gcp)
		if err != nil {
			return nil, err
		}
		c.tokens = tokens
	}

	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"bucket": c.defaultBucket, "gcs_api": c.apiBase}), "gcs.connected")
	return c, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// PublicURL returns the browser facing URL for an object in the default bucket.
func (c *Client) PublicURL(objectKey string) string {
	base := c.publicBaseURL
	if base == "" {
		base = googleAPIBase
	}
	return base + "/" + c.defaultBucket + "/" + objectKey
}

// Put uploads data to the default bucket and returns its public URL.
func (c *Client) Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", errors.New("gcs: object key is required")
	}
	q := url.Values{"uploadType": {"media"}, "name": {objectKey}}
	endpoint := c.apiURL("/upload/storage/v1/b/"+url.PathEscape(c.defaultBucket)+"/o", q)

	resp, err := c.do(ctx, "upload", http.MethodPost, endpoint, bytes.NewReader(data), contentType)
	if err != nil {
		return "", err
	}
	c.drain(ctx, resp)
	return c.PublicURL(objectKey), nil
}

// DeleteObject removes an object; a missing object is not an error.
func (c *Client) DeleteObject(ctx context.Context, bucket, objectKey string) error {
	if bucket == "" {
		bucket = c.DefaultBucket()
	}
	endpoint := c.apiURL("/storage/v1/b/"+url.PathEscape(bucket)+"/o/"+url.PathEscape(objectKey), nil)

	resp, err := c.do(ctx, "delete", http.MethodDelete, endpoint, nil, "")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	c.drain(ctx, resp)
	return nil
}

// Ping lists at most one object to prove the bucket is reachable with our credentials.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	endpoint := c.apiURL("/storage/v1/b/"+url.PathEscape(c.DefaultBucket())+"/o", url.Values{"maxResults": {"1"}})
	resp, err := c.do(ctx, "ping", http.MethodGet, endpoint, nil, "")
	if err != nil {
		return err
	}
	c.drain(ctx, resp)
	return nil
}

func (c *Client) Close() error {
	if c != nil && c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

func (c *Client) apiURL(path string, q url.Values) string {
	base := c.apiBase
	if base == "" {
		base = googleAPIBase
	}
	if len(q) == 0 {
		return base + path
	}
	return base + path + "?" + q.Encode()
}

// do sends an authorized request and turns non-2xx answers into *APIError.
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	if c == nil || c.tokens == nil || c.defaultBucket == "" {
		return nil, errNotConfigured
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gcs %s: %w", op, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer c.drain(ctx, resp)
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

func (c *Client) drain(ctx context.Context, resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if err := resp.Body.Close(); err != nil {
		c.logg.WarnErr(ctx, "gcs.close_body_failed", err)
	}
}
