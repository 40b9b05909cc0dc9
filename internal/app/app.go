// Package app はサブコマンドごとのサービス起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/yashvanth/taskflow/internal/auth"
	"github.com/yashvanth/taskflow/internal/authclient"
	"github.com/yashvanth/taskflow/internal/config"
	"github.com/yashvanth/taskflow/internal/database"
	"github.com/yashvanth/taskflow/internal/file"
	"github.com/yashvanth/taskflow/internal/gateway"
	"github.com/yashvanth/taskflow/internal/handler"
	"github.com/yashvanth/taskflow/internal/logger"
	"github.com/yashvanth/taskflow/internal/metrics"
	"github.com/yashvanth/taskflow/internal/middleware"
	"github.com/yashvanth/taskflow/internal/notify"
	"github.com/yashvanth/taskflow/internal/repository"
	"github.com/yashvanth/taskflow/internal/scheduler"
	"github.com/yashvanth/taskflow/internal/search"
	"github.com/yashvanth/taskflow/internal/sessionreg"
	"github.com/yashvanth/taskflow/internal/task"
	"github.com/yashvanth/taskflow/internal/token"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するサービスとして起動する。
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

	// 以降の全ログ行に発行元サービス名を付与する
	slog.SetDefault(logger.WithService(slog.Default(), string(cmd)))

	slog.Info("starting service",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandAuth:
		return runAuth(cfg)
	case CommandGateway:
		return runGateway(cfg)
	case CommandTask:
		return runTask(cfg)
	case CommandFile:
		return runFile(cfg)
	case CommandSearch:
		return runSearch(cfg)
	case CommandScheduler:
		return runScheduler(cfg)
	case CommandNotifier:
		return runNotifier(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runGateway(cfg)
	}
}

// runAuth はToken Authorityモードで起動する。
// ユーザーストア・Session Registry・署名器をワイヤリングし、HTTPサーバーを起動する。
func runAuth(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// Session Registryは初回接続失敗でも起動を止めない（縮退して継続する）
	registry := sessionreg.NewRedisRegistry(ctx, sessionreg.RedisRegistryConfig{
		Addr:              cfg.RedisAddr,
		Password:          cfg.RedisPassword,
		ReconnectInterval: cfg.ReconnectInterval,
	}, slog.Default())
	registry.OnTransition(collector.RegistryTransitionHook())
	registry.StartReconnectLoop(ctx)

	signer := token.NewSigner(cfg.JWTSecret, cfg.TokenExpiry)
	userRepo := repository.NewPostgresUserRepo(db)
	authService := auth.NewService(userRepo, registry, signer, slog.Default())

	h := handler.NewAuthHandler(authService, authService)
	router := handler.NewAuthRouter(h, auth.NewLocalVerifier(authService), serviceMiddlewares(cfg, collector))

	return serveHTTP("auth", withMetricsRoute(router, reg), cfg.ServerPort)
}

// runGateway はAPI Gatewayモードで起動する。
// バックエンドへの接続は持たず、ルーティングと転送のみを行う。
func runGateway(cfg *config.Config) error {
	gw := gateway.New(cfg, slog.Default())
	return serveHTTP("gateway", gw.Router(), cfg.ServerPort)
}

// runTask はTask Serviceモードで起動する。
// 検索インデックスと通知キューへの連携はベストエフォートで行う。
func runTask(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	publisher := notify.NewPublisher(cfg.AMQPURL, collector, slog.Default())
	defer publisher.Close()

	taskRepo := repository.NewPostgresTaskRepo(db)
	searchRepo := repository.NewPostgresSearchRepo(db)
	taskService := task.NewService(taskRepo, searchRepo, publisher, slog.Default())

	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer limiter.Stop()

	h := handler.NewTaskHandler(taskService)
	router := handler.NewTaskRouter(h, remoteVerifier(cfg, collector), limiter, serviceMiddlewares(cfg, collector))

	return serveHTTP("task", withMetricsRoute(router, reg), cfg.ServerPort)
}

// runFile はFile Serviceモードで起動する。
// オブジェクトストレージへの接続確立に失敗した場合は起動エラーとする。
func runFile(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	storage, err := file.NewS3Storage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	fileRepo := repository.NewPostgresFileRepo(db)
	fileService := file.NewService(fileRepo, storage, slog.Default())

	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer limiter.Stop()

	h := handler.NewFileHandler(fileService)
	router := handler.NewFileRouter(h, remoteVerifier(cfg, collector), limiter, serviceMiddlewares(cfg, collector))

	return serveHTTP("file", withMetricsRoute(router, reg), cfg.ServerPort)
}

// runSearch はSearch Serviceモードで起動する。
func runSearch(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	searchRepo := repository.NewPostgresSearchRepo(db)
	searchService := search.NewService(searchRepo)

	h := handler.NewSearchHandler(searchService)
	router := handler.NewSearchRouter(h, remoteVerifier(cfg, collector), serviceMiddlewares(cfg, collector))

	return serveHTTP("search", withMetricsRoute(router, reg), cfg.ServerPort)
}

// runScheduler はScheduler Serviceモードで起動する。
// APIサーバーと並行してハートビートワーカーをバックグラウンドで動かす。
func runScheduler(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	store := scheduler.NewRedisJobStore(cfg.RedisAddr, cfg.RedisPassword)
	defer store.Close()

	publisher := notify.NewPublisher(cfg.AMQPURL, collector, slog.Default())
	defer publisher.Close()

	taskRepo := repository.NewPostgresTaskRepo(db)
	schedService := scheduler.NewService(store, taskRepo)

	worker := scheduler.NewWorker(store, taskRepo, publisher, cfg.HeartbeatInterval, slog.Default())
	go worker.Run(ctx)

	h := handler.NewSchedulerHandler(schedService)
	router := handler.NewSchedulerRouter(h, remoteVerifier(cfg, collector), serviceMiddlewares(cfg, collector))

	return serveHTTP("scheduler", withMetricsRoute(router, reg), cfg.ServerPort)
}

// runNotifier は通知コンシューマモードで起動する。
// キューからの配信を処理し続け、シグナル受信で停止する。
func runNotifier(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	consumer := notify.NewConsumer(cfg.AMQPURL, notify.LogHandler(slog.Default()), collector, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down notifier...")
		cancel()
	}()

	slog.Info("notifier starting")
	consumer.Run(ctx)

	slog.Info("notifier stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// remoteVerifier は共有の2経路検証ミドルウェア用のVerifierを組み立てる。
// リモート検証はToken Authorityの/verify、フォールバックはローカル署名検証。
func remoteVerifier(cfg *config.Config, collector *metrics.Collector) *middleware.Verifier {
	client := authclient.NewClient(cfg.AuthBaseURL, cfg.VerifyTimeout, slog.Default())
	signer := token.NewSigner(cfg.JWTSecret, cfg.TokenExpiry)
	return middleware.NewVerifier(client, signer, collector, slog.Default())
}

// serviceMiddlewares は各サービス共通のミドルウェア構成を返す。
func serviceMiddlewares(cfg *config.Config, collector *metrics.Collector) handler.Middlewares {
	return handler.Middlewares{
		Logger:            slog.Default(),
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
	}
}

// rateLimiterConfig は設定値からレート制限コンフィグを構成する。
// RATE_LIMIT_GENERALはreq/min単位のため、req/secへ変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	return rlCfg
}

// withMetricsRoute はサービスルーターに/metricsエンドポイントを併設する。
func withMetricsRoute(router http.Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.SetupMetricsRoute(gatherer))
	r.Mount("/", router)
	return r
}

// serveHTTP はHTTPサーバーを起動し、シグナル受信でグレースフルシャットダウンする。
func serveHTTP(name string, router http.Handler, port string) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting",
			slog.String("service", name),
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down server...", slog.String("service", name))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully", slog.String("service", name))
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
