package middleware

import (
	"context"
	"net/http"
	"strings"
)

// LocaleCookieName は表示言語を保持するCookieの名前。
const LocaleCookieName = "locale"

// LocaleMatcher は対応ロケールの判定と解決を行う。
type LocaleMatcher interface {
	Supported(code string) bool
	Fallback() string
	ResolveHeader(acceptLanguage string) string
}

// LocaleConfig はロケールミドルウェアの設定。
type LocaleConfig struct {
	Matcher LocaleMatcher
	// Exempt はロケール接頭辞を付けないパスの接頭辞（/api, /authなど）。
	Exempt       []string
	CookieSecure bool
	CookieDomain string
}

// NewLocaleMiddleware はページのパスを /{locale}/... に揃えるミドルウェアを返す。
// 接頭辞が無いパスは、Cookie、Accept-Language、既定値の順で決めたロケールへ移動させる。
// 接頭辞付きのパスはそのロケールをコンテキストとCookieに設定する。
func NewLocaleMiddleware(cfg LocaleConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, cfg.Exempt) {
				ctx := ContextWithLocale(r.Context(), preferredLocale(r, cfg.Matcher))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if locale, ok := pathLocale(r.URL.Path, cfg.Matcher); ok {
				if c, err := r.Cookie(LocaleCookieName); err != nil || c.Value != locale {
					SetLocaleCookie(w, locale, cfg.CookieSecure, cfg.CookieDomain)
				}
				next.ServeHTTP(w, r.WithContext(ContextWithLocale(r.Context(), locale)))
				return
			}

			target := "/" + preferredLocale(r, cfg.Matcher) + r.URL.Path
			target = strings.TrimSuffix(target, "/")
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}

// SetLocaleCookie はlocale Cookieを設定する。クライアント側からも読めるようHttpOnlyにしない。
func SetLocaleCookie(w http.ResponseWriter, locale string, secure bool, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LocaleCookieName,
		Value:    locale,
		Path:     "/",
		Domain:   domain,
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ContextWithLocale はコンテキストにロケールを注入する。
func ContextWithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeContextKey, locale)
}

// LocaleFromContext はコンテキストのロケールを返す。未設定なら空文字列。
func LocaleFromContext(ctx context.Context) string {
	locale, _ := ctx.Value(localeContextKey).(string)
	return locale
}

// pathLocale はパスの先頭セグメントが対応ロケールならそれを返す。
func pathLocale(path string, m LocaleMatcher) (string, bool) {
	seg := strings.TrimPrefix(path, "/")
	seg, _, _ = strings.Cut(seg, "/")
	if seg != "" && m.Supported(seg) {
		return seg, true
	}
	return "", false
}

func preferredLocale(r *http.Request, m LocaleMatcher) string {
	if c, err := r.Cookie(LocaleCookieName); err == nil && m.Supported(c.Value) {
		return c.Value
	}
	return m.ResolveHeader(r.Header.Get("Accept-Language"))
}

func isExempt(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
