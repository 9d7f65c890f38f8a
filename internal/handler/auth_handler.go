package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/metrics"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code, language string) (*model.Session, *model.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	CreateAccount(ctx context.Context, email, password, name, language string) (*model.Session, *model.User, error)
	SignOut(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// LoginRecorder はログイン・ログアウトとフォーム検証失敗の計測先。
type LoginRecorder interface {
	FormMetrics
	RecordLogin(provider string)
	RecordLogout(reason string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	DefaultLocale string
}

// setSessionCookie はセッションCookieを設定する。
func setSessionCookie(w http.ResponseWriter, cfg AuthHandlerConfig, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, cfg AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requestLocale はリクエストのロケールを返す。未確定なら既定値。
func requestLocale(r *http.Request, fallback string) string {
	if l := middleware.LocaleFromContext(r.Context()); l != "" {
		return l
	}
	return fallback
}

// userResponse はログインユーザーのレスポンス形式。
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
	PhotoURL string `json:"photoUrl"`
	Language string `json:"language"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Admin:    u.Admin,
		PhotoURL: u.PhotoURL,
		Language: u.Language,
	}
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics LoginRecorder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics LoginRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// 成功時はユーザーの言語のホームへ、失敗時はログインページへ戻す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	locale := requestLocale(r, h.config.DefaultLocale)
	session, user, err := h.service.HandleCallback(r.Context(), code, locale)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/"+locale+"/login?error=provider", http.StatusSeeOther)
		return
	}

	setSessionCookie(w, h.config, session.ID)
	middleware.SetLocaleCookie(w, user.Language, h.config.CookieSecure, h.config.CookieDomain)
	h.metrics.RecordLogin(model.ProviderGoogle)

	http.Redirect(w, r, "/"+user.Language, http.StatusSeeOther)
}

// PasswordLogin はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	p := form.MustNew(form.LoginFields(), form.LoginForm{})
	sub, err := decodeSubmission(r, p.Fields(), 0)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var user *model.User
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.LoginForm, _ *storage.Image) error {
		session, u, err := h.service.SignInWithPassword(ctx, f.Email, f.Password)
		if err != nil {
			return err
		}
		setSessionCookie(w, h.config, session.ID)
		user = u
		return nil
	})
	if err != nil {
		recordInvalid(h.metrics, "login", err)
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordLogin(model.ProviderPassword)
	middleware.SetLocaleCookie(w, user.Language, h.config.CookieSecure, h.config.CookieDomain)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Register はメールアドレスとパスワードでアカウントを作成してログインする。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	p := form.MustNew(form.RegisterFields(), form.RegisterForm{})
	sub, err := decodeSubmission(r, p.Fields(), 0)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	locale := requestLocale(r, h.config.DefaultLocale)
	var user *model.User
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.RegisterForm, _ *storage.Image) error {
		session, u, err := h.service.CreateAccount(ctx, f.Email, f.Password, f.Name, locale)
		if err != nil {
			return err
		}
		setSessionCookie(w, h.config, session.ID)
		user = u
		return nil
	})
	if err != nil {
		recordInvalid(h.metrics, "register", err)
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordLogin(model.ProviderPassword)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.service.SignOut(r.Context(), sessionID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		} else {
			h.metrics.RecordLogout(metrics.LogoutManual)
		}
	}

	clearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromRequest(r)
	if sessionID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
