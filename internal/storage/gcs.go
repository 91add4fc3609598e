package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"docvoice/internal/config"
)

// gcsStorage implements Storage on a Google Cloud Storage bucket.
type gcsStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCS creates a Cloud Storage client. Credentials come from cfg.GCSCredentialsFile
// or, when empty, from Application Default Credentials.
func NewGCS(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	cli, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return newGCS(cli, cfg.Bucket), nil
}

func newGCS(cli *storage.Client, bucket string) *gcsStorage {
	return &gcsStorage{client: cli, bucket: cli.Bucket(bucket), name: bucket}
}

func (g *gcsStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = opt.ContentType
	w.Metadata = opt.Metadata

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("finalize %s: %w", key, err)
	}
	return toObjectInfo(w.Attrs()), nil
}

func (g *gcsStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj := g.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	rc, err := obj.NewReader(ctx)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get %s: %w", key, err)
	}
	return rc, toObjectInfo(attrs), nil
}

func (g *gcsStorage) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (g *gcsStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
}

func (g *gcsStorage) URL(key string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + g.name + "/" + key}
	return u.String()
}

func (g *gcsStorage) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	u, err := g.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}

func toObjectInfo(a *storage.ObjectAttrs) ObjectInfo {
	if a == nil {
		return ObjectInfo{}
	}
	return ObjectInfo{
		Key:          a.Name,
		Size:         a.Size,
		ETag:         a.Etag,
		ContentType:  a.ContentType,
		LastModified: a.Updated,
		Metadata:     a.Metadata,
	}
}
