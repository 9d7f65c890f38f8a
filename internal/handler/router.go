package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/babynest/internal/metrics"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/session"
)

// HealthChecker はDB等の疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// AuthService はルーター全体で使う認証サービス。auth.Serviceが満たす。
type AuthService interface {
	AuthServiceInterface
	IdleAuth
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	Metrics       metrics.MetricsCollector
	MetricsRoute  http.Handler
	HealthChecker HealthChecker

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	Locales           middleware.LocaleMatcher
	SupportedLocales  []string
	SessionTimeout    time.Duration // ページ表示前にセッション状態を待つ上限

	// 認証
	AuthService AuthService
	AuthConfig  AuthHandlerConfig
	Users       session.UserFinder
	Idle        IdleHandlerConfig

	// ドメイン
	BabyService    BabyServiceInterface
	HouseService   HouseServiceInterface
	ProfileService ProfileServiceInterface
	Messages       MessageSource
	MaxImageSize   int64

	// UploadDir が空でなければ /uploads/* としてローカル保存した画像を配信する
	UploadDir string
}

// localeExempt はロケール接頭辞を付けないパス。
var localeExempt = []string{"/api", "/auth", "/ws", "/static", "/uploads", "/health", "/metrics"}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Locale → CSRF
//
// /api/* はさらに Session → RateLimit(General)、画面は PageGate を通る。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	pages, err := NewPageHandler(PageHandlerDeps{
		Auth:       deps.AuthService,
		Babies:     deps.BabyService,
		Houses:     deps.HouseService,
		Profiles:   deps.ProfileService,
		Messages:   deps.Messages,
		Metrics:    deps.Metrics,
		Locales:    deps.SupportedLocales,
		Config:     deps.AuthConfig,
		MaxImage:   deps.MaxImageSize,
		LoginLimit: deps.RateLimiter.LoginMiddleware(),
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(deps.Metrics))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLocaleMiddleware(middleware.LocaleConfig{
		Matcher:      deps.Locales,
		Exempt:       localeExempt,
		CookieSecure: deps.CSRF.CookieSecure,
		CookieDomain: deps.CSRF.CookieDomain,
	}))

	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics, deps.AuthConfig)
	babyHandler := NewBabyHandler(deps.BabyService, deps.Metrics, deps.MaxImageSize)
	houseHandler := NewHouseHandler(deps.HouseService, deps.Metrics)
	userHandler := NewUserHandler(deps.ProfileService, deps.AuthService, deps.Metrics,
		deps.SupportedLocales, deps.AuthConfig, deps.MaxImageSize)
	idleHandler := NewIdleHandler(deps.AuthService, deps.Users, deps.Metrics, deps.Idle)
	localeHandler := NewLocaleHandler(deps.Locales, deps.AuthConfig)

	// --- CSRF対象外のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsRoute != nil {
		r.Handle("/metrics", deps.MetricsRoute)
	}
	r.Handle("/static/*", StaticHandler())
	if deps.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir))))
	}
	r.Get("/auth/google/login", authHandler.Login)
	r.Get("/auth/google/callback", authHandler.Callback)
	r.Get("/auth/me", authHandler.Me)
	r.Handle("/ws/idle", idleHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		// 認証ルート（ログイン系は専用のレート制限）
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/auth/login", authHandler.PasswordLogin)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/auth/register", authHandler.Register)
		r.Post("/auth/logout", authHandler.Logout)

		// 言語切り替えはログイン画面からも使う
		r.Put("/api/locale", localeHandler.Change)

		// --- 認証が必要なAPI ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.AuthService))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			SetupBabyRoutes(r, babyHandler)
			SetupHouseRoutes(r, houseHandler)
			SetupUserRoutes(r, userHandler)
		})

		// --- 画面 ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewPageGateMiddleware(middleware.PageGateConfig{
				Gate:          session.NewGate(),
				Source:        deps.AuthService,
				Users:         deps.Users,
				Timeout:       deps.SessionTimeout,
				DefaultLocale: deps.AuthConfig.DefaultLocale,
				Loading:       pages.Loading(),
			}))
			r.Route("/{locale}", pages.Routes)
		})
	})

	return r, nil
}

// healthHandler はDB疎通を含むヘルスチェックを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
