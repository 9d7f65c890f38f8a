package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/babynest/internal/storage"
)

// ImageFetcher は外部URLの画像を取得する。
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*storage.Image, error)
}

// AvatarImporter はプロバイダのプロフィール画像を画像バケットへ取り込む。
type AvatarImporter struct {
	fetcher ImageFetcher
	store   storage.ImageStore
}

// NewAvatarImporter はAvatarImporterを生成する。
func NewAvatarImporter(fetcher ImageFetcher, store storage.ImageStore) *AvatarImporter {
	return &AvatarImporter{fetcher: fetcher, store: store}
}

// Import はrawURLの画像をprofileImages/{userID}/配下に保存し、公開URLを返す。
func (a *AvatarImporter) Import(ctx context.Context, userID, rawURL string) (string, error) {
	img, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch avatar: %w", err)
	}
	url, err := a.store.Upload(ctx, storage.ObjectPath(storage.ProfileImagePrefix, userID, img.Filename), img)
	if err != nil {
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}
	return url, nil
}
