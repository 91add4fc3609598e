package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"docvoice/internal/config"
)

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp", Bucket: "b"})
	assert.ErrorContains(t, err, `unknown storage driver "ftp"`)
}

func TestNewMinIO_RequiresSettings(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"endpoint", config.StorageConfig{Bucket: "b"}, "endpoint"},
		{"credentials", config.StorageConfig{Endpoint: "localhost:9000", Bucket: "b"}, "credentials"},
		{"bucket", config.StorageConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinIO(ctx, tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

// fakeS3 answers HEAD requests for the keys in present.
func fakeS3(t *testing.T, present ...string) *minioStorage {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, k := range present {
			if r.URL.Path == "/pdf-files/"+k {
				w.Header().Set("ETag", `"abc"`)
				w.Header().Set("Content-Length", "3")
				w.Header().Set("Content-Type", "application/pdf")
				w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		if r.URL.Path == "/pdf-files/broken" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	cli, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &minioStorage{client: cli, bucket: "pdf-files"}
}

func TestMinIO_Exists(t *testing.T) {
	ctx := context.Background()
	s := fakeS3(t, "user-1/1700000000000-a.pdf")

	ok, err := s.Exists(ctx, "user-1/1700000000000-a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "user-1/missing.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(ctx, "broken")
	assert.Error(t, err)
}

func TestMinIO_URLs(t *testing.T) {
	s := fakeS3(t)

	assert.True(t, strings.HasSuffix(s.URL("user-1/a.pdf"), "/pdf-files/user-1/a.pdf"))

	signed, err := s.PresignGet(context.Background(), "user-1/a.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, signed, "/pdf-files/user-1/a.pdf?")
	assert.Contains(t, signed, "X-Amz-Expires=3600")
}

func TestGCS_ExistsAndURL(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/o/present.pdf") {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name": "present.pdf", "bucket": "pdf-files", "size": "3", "contentType": "application/pdf",
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
	}))
	defer srv.Close()

	cli, err := storage.NewClient(ctx, option.WithoutAuthentication(), option.WithEndpoint(srv.URL+"/storage/v1/"))
	require.NoError(t, err)
	defer cli.Close()
	g := newGCS(cli, "pdf-files")

	ok, err := g.Exists(ctx, "present.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Exists(ctx, "absent.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "https://storage.googleapis.com/pdf-files/user-1/a.pdf", g.URL("user-1/a.pdf"))
}
