package middleware

import (
	"net/http"
	"strings"
)

// corsAllowedMethods はAPIが受け付けるメソッド。部分更新はPUTで行うためPATCHは含めない。
const corsAllowedMethods = "GET, POST, PUT, DELETE, OPTIONS"

// corsAllowedHeaders はCSRFトークンとロケール切り替えに必要なヘッダー。
const corsAllowedHeaders = "Content-Type, X-CSRF-Token, Accept-Language"

// NewCORSMiddleware はallowedOriginからのクロスオリジン呼び出しだけを許可するミドルウェアを返す。
// セッションCookieを送らせるため、Originが一致したときだけそのOriginを返す。
// allowedOriginが空ならCORSヘッダーを付けない。
// プリフライト（Access-Control-Request-Method付きのOPTIONS）には204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			if allowedOrigin != "" && origin == allowedOrigin {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
