package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// GCSUploader пишет объекты в бакет Cloud Storage
type GCSUploader struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

// NewGCSUploader создает загрузчик. Пустой baseURL означает публичный адрес storage.googleapis.com
func NewGCSUploader(client *gcs.Client, bucket, baseURL string) (*GCSUploader, error) {
	if client == nil {
		return nil, errors.New("objectstore: gcs client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("objectstore: bucket name is required")
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSUploader{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	object, err := cleanPath(path)
	if err != nil {
		return "", err
	}

	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("objectstore: write gs://%s/%s: %w", u.bucket, object, err)
	}
	// загрузка фиксируется только в Close
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("objectstore: close gs://%s/%s: %w", u.bucket, object, err)
	}
	return joinURL(u.baseURL, object), nil
}
