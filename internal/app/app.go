package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hitoshi/babynest/internal/auth"
	"github.com/hitoshi/babynest/internal/baby"
	"github.com/hitoshi/babynest/internal/config"
	"github.com/hitoshi/babynest/internal/database"
	"github.com/hitoshi/babynest/internal/handler"
	"github.com/hitoshi/babynest/internal/house"
	"github.com/hitoshi/babynest/internal/i18n"
	"github.com/hitoshi/babynest/internal/idle"
	"github.com/hitoshi/babynest/internal/logger"
	"github.com/hitoshi/babynest/internal/metrics"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/profile"
	"github.com/hitoshi/babynest/internal/repository"
	"github.com/hitoshi/babynest/internal/security"
	"github.com/hitoshi/babynest/internal/storage"
	"github.com/hitoshi/babynest/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
)

// relayChannel は認証通知を中継するRedisチャンネル名。
const relayChannel = "babynest:auth"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	babyRepo := repository.NewPostgresBabyRepo(db)
	houseRepo := repository.NewPostgresHouseRepo(db)

	// 3. 画像ストレージ
	images, uploadDir, closeImages, err := openImageStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeImages()

	// 4. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ロケール
	resolver, err := i18n.NewResolver(cfg.SupportedLocales, cfg.DefaultLocale)
	if err != nil {
		return fmt.Errorf("failed to build locale resolver: %w", err)
	}
	catalog, err := i18n.LoadCatalog(cfg.SupportedLocales, cfg.DefaultLocale)
	if err != nil {
		return fmt.Errorf("failed to load message catalog: %w", err)
	}

	// 6. 認証サービスと通知中継
	broker := auth.NewBroker()
	if cfg.RedisURL != "" {
		stopRelay, err := startRelay(ctx, cfg.RedisURL, broker)
		if err != nil {
			return err
		}
		defer stopRelay()
	}

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo, broker,
		auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			DefaultLocale: cfg.DefaultLocale,
		},
	)

	ssrfGuard := security.NewSSRFGuard(cfg.AvatarAllowedHosts...)
	avatarFetcher := security.NewRemoteImageFetcher(ssrfGuard, cfg.AvatarImportTimeout, cfg.AvatarMaxSize)
	authService.SetAvatars(auth.NewAvatarImporter(avatarFetcher, images))

	// 7. ドメインサービスとハンドラーアダプタ
	babyService := baby.NewService(babyRepo, images)
	houseService := house.NewService(houseRepo)
	profileService := profile.NewService(userRepo, sessionRepo, images, resolver)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:        slog.Default(),
		Metrics:       collector,
		MetricsRoute:  metrics.SetupMetricsRoute(registry),
		HealthChecker: db,

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Locales:          resolver,
		SupportedLocales: cfg.SupportedLocales,
		SessionTimeout:   cfg.SessionHydrateTimeout,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			DefaultLocale: cfg.DefaultLocale,
		},
		Users: userRepo,
		Idle: handler.IdleHandlerConfig{
			Idle: idle.Config{
				Timeout:    cfg.IdleTimeout,
				Countdown:  cfg.IdleCountdown,
				TickPeriod: cfg.IdleTickPeriod,
			},
			HydrateTimeout: cfg.SessionHydrateTimeout,
			DefaultLocale:  cfg.DefaultLocale,
		},

		BabyService:    handler.NewBabyServiceAdapter(babyService, collector),
		HouseService:   handler.NewHouseServiceAdapter(houseService, collector),
		ProfileService: handler.NewProfileServiceAdapter(profileService, collector),
		Messages:       catalog,
		MaxImageSize:   cfg.MaxUploadSize,
		UploadDir:      uploadDir,
	}

	router, err := handler.NewRouter(deps)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 9. HTTPサーバーの起動
	// WebSocketは長時間の接続になるためWriteTimeoutは設定しない
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openImageStore はGCSバケットが設定されていればGCSを、なければローカルディスクを使う。
// ローカルの場合は配信用のディレクトリも返す。
func openImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, string, func(), error) {
	if cfg.GCSBucket != "" {
		store, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to open GCS bucket: %w", err)
		}
		slog.Info("image storage: gcs", slog.String("bucket", cfg.GCSBucket))
		return store, "", func() { store.Close() }, nil
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicUploadURL)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open upload directory: %w", err)
	}
	slog.Info("image storage: local", slog.String("dir", store.Dir()))
	return store, store.Dir(), func() {}, nil
}

// startRelay はRedis経由の認証通知中継を開始する。
func startRelay(ctx context.Context, redisURL string, broker *auth.Broker) (func(), error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	relay := auth.NewRedisRelay(client, broker, relayChannel)
	stopRelay, err := relay.Start(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start auth relay: %w", err)
	}
	broker.SetRelay(relay)

	slog.Info("auth relay started", slog.String("channel", relayChannel))
	return func() {
		stopRelay()
		client.Close()
	}, nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除を定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	job := cleanup.NewCleanupJob(db, slog.Default(), nil)
	job.GraceHours = cfg.SessionCleanupGraceHours

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// ブロッキング
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runCleanup は期限切れセッションの削除を1回だけ実行する。
// 外部スケジューラ（Cloud Scheduler等）からの起動用。
func runCleanup(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(db, slog.Default(), nil)
	job.GraceHours = cfg.SessionCleanupGraceHours

	return job.Run(context.Background())
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(status.Version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
