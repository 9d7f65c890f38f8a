package security

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hitoshi/babynest/internal/storage"
)

// RemoteImageFetcher は外部URLの画像をSSRF防止付きクライアントで取得する。
// Googleアカウントのプロフィール画像を自前のバケットへ取り込む用途で使う。
type RemoteImageFetcher struct {
	guard   SSRFGuardService
	client  *http.Client
	maxSize int64
}

// NewRemoteImageFetcher はRemoteImageFetcherを生成する。
func NewRemoteImageFetcher(guard SSRFGuardService, timeout time.Duration, maxSize int64) *RemoteImageFetcher {
	return &RemoteImageFetcher{
		guard:   guard,
		client:  guard.NewSafeClient(timeout, maxSize),
		maxSize: maxSize,
	}
}

// Fetch はrawURLの画像を取得する。
// URL検証に失敗した場合、非200応答の場合、画像でない場合はエラーを返す。
func (f *RemoteImageFetcher) Fetch(ctx context.Context, rawURL string) (*storage.Image, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("avatar URL rejected: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build avatar request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("avatar fetch returned status %d", resp.StatusCode)
	}

	return storage.ReadImage(filenameFromURL(rawURL), resp.Body, f.maxSize)
}

// filenameFromURL はURLパスの末尾をファイル名として使う。拡張子が無ければ付けない。
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "avatar"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "avatar"
	}
	return name
}
