package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/hitoshi/babynest/internal/i18n"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
)

// maxLocaleBody は言語切り替えリクエストのボディ上限。
const maxLocaleBody = 1 << 10

// LocaleChecker は言語コードが対応ロケールかを判定する。
type LocaleChecker interface {
	Supported(code string) bool
	Fallback() string
}

// LocaleHandler は言語切り替えのHTTPハンドラー。
// 未ログインでも使えるため、ユーザーレコードは更新せずCookieだけを切り替える。
type LocaleHandler struct {
	locales LocaleChecker
	config  AuthHandlerConfig
}

// NewLocaleHandler はLocaleHandlerを生成する。
func NewLocaleHandler(locales LocaleChecker, config AuthHandlerConfig) *LocaleHandler {
	return &LocaleHandler{locales: locales, config: config}
}

// Change はロケールCookieを切り替える。
// ボディは "es" または {"language": "es"} のどちらでもよい。
// PUT /api/locale
func (h *LocaleHandler) Change(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLocaleBody))
	if err != nil {
		middleware.WriteError(w, &model.ValidationError{Fields: map[string]string{"language": "Language is not valid"}})
		return
	}

	pref, err := i18n.ParsePreference(json.RawMessage(raw))
	if err != nil {
		middleware.WriteError(w, &model.ValidationError{Fields: map[string]string{"language": "Language is not valid"}})
		return
	}

	locale := i18n.PreferenceLocale(pref, h.locales.Fallback())
	if !h.locales.Supported(locale) {
		middleware.WriteError(w, model.NewUnsupportedLocaleError(locale))
		return
	}

	middleware.SetLocaleCookie(w, locale, h.config.CookieSecure, h.config.CookieDomain)
	writeJSON(w, http.StatusOK, map[string]string{"locale": locale})
}
