package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore はGoogle Cloud Storageのバケットに画像を保存する。
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore はGCSクライアントを生成する。
// credentialsFileが空の場合はApplication Default Credentialsを使う。
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

// Upload は画像をobjectPathに書き込み、公開URLを返す。
func (s *GCSStore) Upload(ctx context.Context, objectPath string, img *Image) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = img.ContentType
	writer.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(writer, img.reader()); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to copy image to GCS object %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}

	slog.Info("image uploaded",
		slog.String("bucket", s.bucket),
		slog.String("object", objectPath),
		slog.Int("bytes", len(img.Data)),
	)
	return PublicObjectURL(s.bucket, objectPath), nil
}

// Close はGCSクライアントを閉じる。
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// PublicObjectURL はバケット内オブジェクトの公開URLを返す。
func PublicObjectURL(bucket, objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "https://storage.googleapis.com/" + bucket + "/" + strings.Join(segments, "/")
}

var _ ImageStore = (*GCSStore)(nil)
