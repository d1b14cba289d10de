// Package gcs provides a movements Store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gcstorage "cloud.google.com/go/storage"

	"github.com/JakeFAU/harbour-movements/internal/storage"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	// Prefix is the root of the date-partitioned key layout, e.g. "data".
	Prefix string
}

// Store writes movement files to a configured GCS bucket.
type Store struct {
	client *gcstorage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed store.
func New(client *gcstorage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Create opens a writer for the run's object and returns its gs:// URI.
// The object is only committed when the writer is closed; an existing object
// with the same key is overwritten.
func (s *Store) Create(ctx context.Context, at time.Time) (io.WriteCloser, string, error) {
	key := storage.ObjectPath(s.prefix, at)
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = storage.ContentType
	return w, fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
