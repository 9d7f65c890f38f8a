package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
)

// PanicRecorder は回復したpanicの記録先。
type PanicRecorder interface {
	RecordPanic(route string)
}

// NewRecoveryMiddleware はハンドラーのpanicを回復し、統一エラー形式の500を返すミドルウェアを生成する。
// mがnilでなければルートパターン別に記録する。
// http.ErrAbortHandlerはnet/httpの中断処理のため再度panicさせる。
func NewRecoveryMiddleware(m PanicRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				route := routePattern(r)
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("route", route),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				if m != nil {
					m.RecordPanic(route)
				}
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern はchiが照合したルートパターンを返す。照合前なら"unmatched"。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
