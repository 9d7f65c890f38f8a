package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- モック定義 ---

// allowAllGuard はValidateURLを常に通し、通常のHTTPクライアントを返すテスト用ガード。
// httptestサーバー（127.0.0.1）相手に取得処理そのものを検証するために使う。
type allowAllGuard struct{}

func (allowAllGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (allowAllGuard) ValidateURL(string) error { return nil }

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// --- テスト ---

func TestRemoteImageFetcher_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	defer ts.Close()

	f := NewRemoteImageFetcher(NewSSRFGuard(), time.Second, 1024)

	if _, err := f.Fetch(t.Context(), ts.URL+"/photo.png"); err == nil {
		t.Fatal("expected loopback avatar URL to be rejected")
	}
}

func TestRemoteImageFetcher_FetchesImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "image/*" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Write(pngBytes)
	}))
	defer ts.Close()

	f := NewRemoteImageFetcher(allowAllGuard{}, time.Second, 1024)

	img, err := f.Fetch(t.Context(), ts.URL+"/a/photo.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if img.Filename != "photo.png" {
		t.Errorf("Filename = %q, want %q", img.Filename, "photo.png")
	}
	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %q", img.ContentType)
	}
}

func TestRemoteImageFetcher_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := NewRemoteImageFetcher(allowAllGuard{}, time.Second, 1024)

	if _, err := f.Fetch(t.Context(), ts.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://lh3.googleusercontent.com/a/ACg8oc=s96-c": "ACg8oc=s96-c",
		"https://example.com/":                             "avatar",
		"https://example.com":                              "avatar",
	}
	for in, want := range tests {
		if got := filenameFromURL(in); got != want {
			t.Errorf("filenameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
