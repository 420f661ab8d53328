// Package storage offloads raw scan captures to S3-compatible object
// storage. The offload is strictly best-effort: the base64 payload on the
// scan row remains the source of truth, and a failed upload only costs the
// convenience URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/healthscan/go-healthscan-backend/internal/config"
)

// ArtifactStore is the upload surface the scan service depends on; nil
// means offload is disabled.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MinioStore implements ArtifactStore on a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	public string // base URL for stored-object links
}

// NewMinioStore connects to the configured endpoint and ensures the bucket
// exists. Call only when cfg.Enabled().
func NewMinioStore(ctx context.Context, cfg config.ArtifactConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		public: fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket),
	}, nil
}

// Upload stores the object and returns its URL.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.public + "/" + key, nil
}
