// Package gcs provides an object store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes documents to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed object store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put uploads data to key, overwriting any existing object.
func (s *BlobStore) Put(ctx context.Context, key string, contentType string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", key, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present in the bucket.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
	return true, nil
}

// URI returns the gs:// location of key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}
