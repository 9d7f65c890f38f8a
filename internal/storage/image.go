// Package storage は画像バケットへのアップロードを提供する。
// 本番はGoogle Cloud Storage、開発環境ではローカルディレクトリを使う。
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// オブジェクトパスのプレフィックス
const (
	ProfileImagePrefix = "profileImages"
	BabyImagePrefix    = "babyImages"
)

var (
	// ErrNotImage は画像以外のファイルが渡された場合のエラー。
	ErrNotImage = errors.New("file is not an image")
	// ErrImageTooLarge はサイズ上限を超えた場合のエラー。
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// Image はアップロード前の画像ファイル。
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageStore は画像を保存して公開URLを返す。
type ImageStore interface {
	Upload(ctx context.Context, objectPath string, img *Image) (string, error)
}

// ReadImage はrから最大maxBytesを読み込み、画像であることを確認する。
// Content-Typeは申告値ではなく先頭バイトから判定する。
func ReadImage(filename string, r io.Reader, maxBytes int64) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}

	return &Image{Filename: filename, ContentType: contentType, Data: data}, nil
}

// PreviewURL はネットワークに送る前の表示用data URLを返す。
func (img *Image) PreviewURL() string {
	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(img.ContentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(img.Data))
	return b.String()
}

func (img *Image) reader() io.Reader {
	return bytes.NewReader(img.Data)
}

// ObjectPath は "{prefix}/{id}/{filename}" 形式のオブジェクトパスを組み立てる。
// ファイル名からディレクトリ成分を取り除き、空白はアンダースコアに置き換える。
func ObjectPath(prefix, id, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = "image"
	}
	name = strings.Join(strings.Fields(name), "_")
	return path.Join(prefix, id, name)
}
