package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore はローカルディレクトリに画像を保存する開発用の実装。
// 保存したファイルは /uploads 配下で静的配信する。
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore はLocalStoreを生成する。dirが無ければ作成する。
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *LocalStore) Dir() string { return s.dir }

// Upload は画像をdir/objectPathに書き込み、公開URLを返す。
func (s *LocalStore) Upload(ctx context.Context, objectPath string, img *Image) (string, error) {
	clean := path.Clean("/" + objectPath)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object path: %q", objectPath)
	}

	dest := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, img.reader()); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return s.publicURL + "/" + clean, nil
}

var _ ImageStore = (*LocalStore)(nil)
