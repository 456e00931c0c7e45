package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"deptportal/internal/config"
)

// minioMirror implements Mirror on an S3-compatible backend (MinIO, AWS S3, etc.).
// It is safe for concurrent use by multiple goroutines.
type minioMirror struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIO connects to the configured endpoint and ensures the bucket exists,
// creating it if missing.
func NewMinIO(cfg config.MinIOConfig) (Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &minioMirror{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// objectKey places a slash-separated relative path under prefix.
func objectKey(prefix, key string) string {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// contentDisposition renders an attachment header for name, or "" when name is empty.
func contentDisposition(name string) string {
	if name == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func (m *minioMirror) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	objKey := objectKey(m.prefix, key)
	info, err := m.client.PutObject(ctx, m.bucket, objKey, r, opt.Size, minio.PutObjectOptions{
		ContentType:        opt.ContentType,
		ContentDisposition: contentDisposition(opt.DownloadName),
		UserMetadata:       opt.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put %s: %w", objKey, err)
	}
	return ObjectInfo{
		Key:          objKey,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: info.LastModified,
		Metadata:     opt.Metadata,
	}, nil
}

func (m *minioMirror) Delete(ctx context.Context, key string) error {
	objKey := objectKey(m.prefix, key)
	if err := m.client.RemoveObject(ctx, m.bucket, objKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", objKey, err)
	}
	return nil
}
