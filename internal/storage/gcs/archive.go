// Package gcs provides a page archive backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

const contentType = "text/html; charset=utf-8"

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
}

// Archive writes pages to a configured GCS bucket.
type Archive struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed archive.
func New(client *storage.Client, cfg Config) (*Archive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

// PutPage uploads body to key and returns a gs:// URI.
func (a *Archive) PutPage(ctx context.Context, key string, body []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	writer := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, bytes.NewReader(body)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, key), nil
}

// Close releases the underlying client.
func (a *Archive) Close() error {
	return a.client.Close()
}
