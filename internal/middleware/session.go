// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/session"
)

// SessionCookieName はセッションIDを保持するHttpOnly Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey = contextKey("user_id")
	userContextKey   = contextKey("user")
	localeContextKey = contextKey("locale")
	requestLogKey    = contextKey("request_log")
)

// IdentityResolver はセッションIDから認証済みユーザーIDを解決する。
// 無効なセッションは空文字列を返す。
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, sessionID string) (string, error)
}

// SessionIDFromRequest はCookieからセッションIDを取り出す。無ければ空文字列。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するAPI用のミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				writeUnauthorized(w)
				return
			}

			userID, err := resolver.CurrentIdentity(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w)
				return
			}
			if userID == "" {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// PageGateConfig はページ用セッションゲートの設定。
type PageGateConfig struct {
	Gate          *session.Gate
	Source        session.Source
	Users         session.UserFinder
	Timeout       time.Duration // 状態確定を待つ上限
	DefaultLocale string
	// Loading は状態が時間内に確定しなかったときの表示。nilなら503を返す。
	Loading http.Handler
}

// NewPageGateMiddleware はページ表示の前にセッション状態を確定させ、
// Gateの判定に従ってページ表示・ログインへの移動・ホームへの移動を行う。
// リクエストごとにMachineを生成し、認証通知の購読はリクエスト終了時に解除する。
func NewPageGateMiddleware(cfg PageGateConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := session.NewMachine(cfg.Users, cfg.Timeout)
			teardown := m.Attach(cfg.Source, SessionIDFromRequest(r))
			defer teardown()

			ctx := r.Context()
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}
			st, err := m.Wait(ctx)
			if err != nil {
				slog.Warn("session state not settled",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}

			locale := LocaleFromContext(r.Context())
			if locale == "" {
				locale = cfg.DefaultLocale
			}

			switch cfg.Gate.Decide(r.URL.Path, st) {
			case session.RedirectLogin:
				http.Redirect(w, r, session.LoginPath(locale), http.StatusSeeOther)
			case session.RedirectHome:
				http.Redirect(w, r, session.HomePath(locale), http.StatusSeeOther)
			case session.RenderLoading:
				if cfg.Loading != nil {
					cfg.Loading.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", "1")
				http.Error(w, "loading", http.StatusServiceUnavailable)
			default:
				rctx := r.Context()
				if st.Status == session.StatusAuthenticated {
					rctx = ContextWithUser(rctx, st.User)
				}
				next.ServeHTTP(w, r.WithContext(rctx))
			}
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
// 外側のリクエストログにもユーザーIDを伝える。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if entry, ok := ctx.Value(requestLogKey).(*requestLogEntry); ok {
		entry.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithUser はユーザーレコードとユーザーIDをコンテキストに注入する。
func ContextWithUser(ctx context.Context, u *model.User) context.Context {
	if u == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, userContextKey, u)
	return ContextWithUserID(ctx, u.ID)
}

// UserFromContext はページゲートが確定させたユーザーを返す。未ログインならnil。
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userContextKey).(*model.User)
	return u
}
