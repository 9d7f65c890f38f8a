package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

// ProfileServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.User, error)
	Update(ctx context.Context, userID string, f form.ProfileForm, image *storage.Image) (*model.User, error)
	// Withdraw はユーザーとそのセッションを削除する。
	Withdraw(ctx context.Context, userID string) error
}

// SessionEnder はセッション終了を購読者へ通知する。
type SessionEnder interface {
	SignOut(ctx context.Context, sessionID string) error
}

// UserHandler はユーザープロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service  ProfileServiceInterface
	sessions SessionEnder
	metrics  FormMetrics
	locales  []string
	config   AuthHandlerConfig
	maxImage int64
}

// NewUserHandler はUserHandlerを生成する。localesは言語の選択肢。
func NewUserHandler(service ProfileServiceInterface, sessions SessionEnder, m FormMetrics, locales []string, config AuthHandlerConfig, maxImage int64) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
		metrics:  m,
		locales:  locales,
		config:   config,
		maxImage: maxImage,
	}
}

// Me はログインユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Update はプロフィールを更新する。言語が変わった場合はロケールCookieも更新する。
// PUT /api/users/me
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	current, err := h.service.Get(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	p := form.MustNew(form.ProfileFields(h.locales), form.ProfileFormFrom(current))
	sub, err := decodeSubmission(r, p.Fields(), h.maxImage)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var updated *model.User
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.ProfileForm, img *storage.Image) error {
		u, err := h.service.Update(ctx, userID, f, img)
		updated = u
		return err
	})
	if err != nil {
		recordInvalid(h.metrics, "profile", err)
		middleware.WriteError(w, err)
		return
	}

	middleware.SetLocaleCookie(w, updated.Language, h.config.CookieSecure, h.config.CookieDomain)
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Withdraw はユーザーの退会処理を実行する。
// 接続中のクライアントにはサインアウトとして通知する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.sessions.SignOut(r.Context(), sessionID); err != nil {
			slog.Warn("failed to notify sign-out after withdrawal", slog.String("error", err.Error()))
		}
	}
	clearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}

// SetupUserRoutes はユーザー管理のルーティングを設定する。
func SetupUserRoutes(r chi.Router, h *UserHandler) {
	r.Route("/api/users", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Put("/me", h.Update)
		r.Delete("/me", h.Withdraw)
	})
}
