package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func csrfHandler(called *bool, token *string) http.Handler {
	mw := NewCSRFMiddleware(CSRFConfig{})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if token != nil {
			*token = CSRFTokenFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			w := httptest.NewRecorder()
			csrfHandler(&called, nil).ServeHTTP(w, httptest.NewRequest(method, "/en/login", nil))

			if !called {
				t.Fatalf("handler should have been called for %s", method)
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCSRFMiddleware_MutatingMethods_RequireToken(t *testing.T) {
	tests := []struct {
		name   string
		method string
		cookie string
		header string
		want   int
	}{
		{"POST no cookie", http.MethodPost, "", "token", http.StatusForbidden},
		{"POST no header", http.MethodPost, "token", "", http.StatusForbidden},
		{"POST mismatch", http.MethodPost, "token-a", "token-b", http.StatusForbidden},
		{"POST valid", http.MethodPost, "token", "token", http.StatusOK},
		{"PUT valid", http.MethodPut, "token", "token", http.StatusOK},
		{"PATCH missing", http.MethodPatch, "", "", http.StatusForbidden},
		{"DELETE missing", http.MethodDelete, "", "", http.StatusForbidden},
		{"DELETE valid", http.MethodDelete, "token", "token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/babies", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}

			called := false
			w := httptest.NewRecorder()
			csrfHandler(&called, nil).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if called != (tt.want == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
		})
	}
}

func TestCSRFMiddleware_POST_FormFieldToken(t *testing.T) {
	form := url.Values{CSRFFormField: {"form-token"}, "name": {"Casa"}}
	req := httptest.NewRequest(http.MethodPost, "/en/user/settings/house", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "form-token"})

	called := false
	var token string
	w := httptest.NewRecorder()
	csrfHandler(&called, &token).ServeHTTP(w, req)

	if !called {
		t.Fatalf("handler should have been called, status = %d", w.Code)
	}
	if token != "form-token" {
		t.Errorf("context token = %q, want %q", token, "form-token")
	}
}

func TestCSRFMiddleware_GET_SetsCookieAndContextToken(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{CookieDomain: "example.com"})
	var token string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = CSRFTokenFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/en/login", nil))

	var csrfCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrfCookie = c
		}
	}
	if csrfCookie == nil || csrfCookie.Value == "" {
		t.Fatal("expected CSRF cookie to be set on GET request")
	}
	if csrfCookie.HttpOnly {
		t.Error("CSRF cookie should NOT be HttpOnly")
	}
	if csrfCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", csrfCookie.SameSite)
	}
	if token != csrfCookie.Value {
		t.Errorf("context token = %q, want cookie value %q", token, csrfCookie.Value)
	}
}

func TestCSRFMiddleware_GET_ExistingCookie_DoesNotReplace(t *testing.T) {
	called := false
	var token string
	req := httptest.NewRequest(http.MethodGet, "/en", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	csrfHandler(&called, &token).ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			t.Error("CSRF cookie should not be re-set when already present")
		}
	}
	if token != "existing-token" {
		t.Errorf("context token = %q", token)
	}
}

// --- CSRFトークン取得エンドポイントのテスト ---

func TestCSRFTokenHandler_ReturnsTokenMatchingCookie(t *testing.T) {
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != body["token"] {
		t.Errorf("cookie/token mismatch: %v vs %q", cookies, body["token"])
	}
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "kept"})
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["token"] != "kept" {
		t.Errorf("token = %q, want kept", body["token"])
	}
}
