// Package bucket provides object storage for OCR artifacts. Uploads are
// idempotent upserts: writing the same path twice overwrites, so concurrent
// writers for the same document converge.
package bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = eris.New("bucket: object not found")

// Store defines the object-storage operations used by the artifact layer.
type Store interface {
	// Upload writes data at path, overwriting any existing object.
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	// Download reads the object at path. Returns ErrNotFound if absent.
	Download(ctx context.Context, path string) ([]byte, error)
	// Remove deletes the object at path. Removing a missing object is not
	// an error.
	Remove(ctx context.Context, path string) error
}

// APIError carries the storage service's status code for classification.
type APIError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bucket: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the HTTP client.
type Option func(*httpStore)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *httpStore) {
		s.http = hc
	}
}

type httpStore struct {
	baseURL string
	apiKey  string
	bucket  string
	http    *http.Client
}

// NewHTTP creates a Store backed by a Supabase-compatible storage API.
func NewHTTP(baseURL, apiKey, bucketName string, opts ...Option) Store {
	s := &httpStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucketName,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *httpStore) objectURL(path string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), path)
}

func (s *httpStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(path), bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "bucket: create upload request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)
	// Upsert makes re-processing a document overwrite instead of conflict.
	req.Header.Set("x-upsert", "true")

	resp, err := s.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "bucket: upload %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    fmt.Sprintf("upload %s: %s", path, string(body)),
		}
	}
	return nil
}

func (s *httpStore) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(path), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bucket: create download request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "bucket: download %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    fmt.Sprintf("download %s: %s", path, string(body)),
		}
	}
	if readErr != nil {
		return nil, eris.Wrapf(readErr, "bucket: read %s", path)
	}
	return body, nil
}

func (s *httpStore) Remove(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(path), nil)
	if err != nil {
		return eris.Wrap(err, "bucket: create delete request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "bucket: delete %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("delete %s: %s", path, string(body)),
		}
	}
	return nil
}

// parseRetryAfter reads a Retry-After header expressed in seconds.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
