package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/babynest/internal/i18n"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
)

func newTestLocaleHandler(t *testing.T) *LocaleHandler {
	t.Helper()
	resolver, err := i18n.NewResolver([]string{"en", "es", "fr"}, "en")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return NewLocaleHandler(resolver, AuthHandlerConfig{})
}

// --- PUT /api/locale テスト ---

func TestLocaleHandler_Change(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		locale string
	}{
		{name: "string preference", body: `"es"`, locale: "es"},
		{name: "object preference", body: `{"language":"fr"}`, locale: "fr"},
		{name: "null falls back to default", body: `null`, locale: "en"},
		{name: "empty object falls back to default", body: `{}`, locale: "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestLocaleHandler(t)

			req := httptest.NewRequest(http.MethodPut, "/api/locale", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Change(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
			}
			c := findCookie(w.Result(), middleware.LocaleCookieName)
			if c == nil || c.Value != tt.locale {
				t.Errorf("locale cookie = %v, want %s", c, tt.locale)
			}
		})
	}
}

func TestLocaleHandler_Change_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "unsupported locale", body: `"de"`, code: model.ErrCodeUnsupportedLocale},
		{name: "number", body: `42`, code: model.ErrCodeValidation},
		{name: "broken json", body: `{"language":`, code: model.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestLocaleHandler(t)

			req := httptest.NewRequest(http.MethodPut, "/api/locale", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Change(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := parseErrorBody(t, w); body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if findCookie(w.Result(), middleware.LocaleCookieName) != nil {
				t.Error("locale cookie must not be set on failure")
			}
		})
	}
}
