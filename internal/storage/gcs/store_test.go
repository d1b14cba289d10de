// Package gcs_test contains unit tests for the GCS store.
package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/harbour-movements/internal/storage/gcs"
)

var runTime = time.Date(2024, 1, 15, 9, 30, 0, 0, time.FixedZone("AEDT", 11*60*60))

// newTestClient creates a GCS client pointed at a test server.
func newTestClient(t *testing.T, handler http.Handler) *gcstorage.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gcstorage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	assert.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = gcs.New(client, gcs.Config{})
	assert.Error(t, err)
}

func TestCreateUploadsObject(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		mu.Lock()
		path = r.URL.Path
		body = string(data)
		mu.Unlock()
		fmt.Fprintln(w, `{"name": "data/2024/01/15/2024-01-15_0930+1100.jsonl", "bucket": "movements"}`)
	})

	store, err := gcs.New(newTestClient(t, handler), gcs.Config{Bucket: "movements", Prefix: "/data/"})
	require.NoError(t, err)

	w, uri, err := store.Create(context.Background(), runTime)
	require.NoError(t, err)
	assert.Equal(t, "gs://movements/data/2024/01/15/2024-01-15_0930+1100.jsonl", uri)

	_, err = w.Write([]byte(`{"Vessel":"Ocean Star"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, path, "/upload/storage/v1/b/movements/o")
	assert.Contains(t, body, `{"Vessel":"Ocean Star"}`)
	assert.Contains(t, body, "data/2024/01/15/2024-01-15_0930+1100.jsonl")
	assert.Contains(t, body, "application/x-ndjson")
}

func TestCreateSurfacesUploadError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store, err := gcs.New(newTestClient(t, handler), gcs.Config{Bucket: "movements"})
	require.NoError(t, err)

	w, _, err := store.Create(context.Background(), runTime)
	require.NoError(t, err)
	_, _ = w.Write([]byte("x\n"))
	assert.Error(t, w.Close())
}
