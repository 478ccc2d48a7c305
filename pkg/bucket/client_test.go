package bucket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPUploadUpsert(t *testing.T) {
	var gotUpsert, gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/object/medical-docs/p1/d1-ocr/manifest.json", r.URL.Path)
		gotUpsert = r.Header.Get("x-upsert")
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTP(srv.URL, "key-123", "medical-docs")
	err := s.Upload(context.Background(), "p1/d1-ocr/manifest.json", []byte(`{}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "application/json", gotType)
}

func TestHTTPUploadRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewHTTP(srv.URL, "key", "b")
	err := s.Upload(context.Background(), "x", []byte("data"), "text/plain")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 3*time.Second, apiErr.RetryAfter)
}

func TestHTTPDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTP(srv.URL, "key", "b")
	_, err := s.Download(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPRemoveMissingIsNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTP(srv.URL, "key", "b")
	assert.NoError(t, s.Remove(context.Background(), "missing"))
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, "a/b.json", []byte("one"), "application/json"))
	require.NoError(t, m.Upload(ctx, "a/b.json", []byte("two"), "application/json"))

	got, err := m.Download(ctx, "a/b.json")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "application/json", m.ContentType("a/b.json"))

	require.NoError(t, m.Remove(ctx, "a/b.json"))
	_, err = m.Download(ctx, "a/b.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
