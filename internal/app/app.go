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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shinkan/internal/config"
	"github.com/hitoshi/shinkan/internal/database"
	"github.com/hitoshi/shinkan/internal/handler"
	"github.com/hitoshi/shinkan/internal/logger"
	"github.com/hitoshi/shinkan/internal/metrics"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/platform"
	"github.com/hitoshi/shinkan/internal/publisher"
	"github.com/hitoshi/shinkan/internal/repository"
	"github.com/hitoshi/shinkan/internal/security"
	"github.com/hitoshi/shinkan/internal/settings"
	"github.com/hitoshi/shinkan/internal/sink"
	"github.com/hitoshi/shinkan/internal/subscription"
	"github.com/hitoshi/shinkan/internal/voice"
	"github.com/hitoshi/shinkan/internal/worker/cleanup"
)

// Version はアプリケーションのバージョン。ビルド時に-ldflagsで上書きされる。
var Version = "dev"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めなくてもログは使えるようにしておく
		logger.SetupDefault(w, "info")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
		slog.String("version", Version),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// ポーリング・ハートビートのバックグラウンドタスクを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
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
	feedRepo := repository.NewPostgresFeedRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	subscriberRepo := repository.NewPostgresSubscriberRepo(db)
	subscriptionRepo := repository.NewPostgresSubscriptionRepo(db)
	voiceRepo := repository.NewPostgresVoiceSessionRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	metaRepo := repository.NewPostgresMetaRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プラットフォームアダプタの初期化
	log := slog.Default()
	client := &http.Client{Timeout: cfg.RequestTimeout}

	platforms := platform.NewRegistry(
		platform.NewAniListPlatform(client, cfg.AniListRatePerMin, log),
		platform.NewMangaDexPlatform(client, cfg.MangaDexRatePerSec, log),
		platform.NewComickPlatform(client, cfg.ComickRatePerMin, log),
	)
	platforms.SetFallback(platform.NewRSSPlatform(ssrfGuard, cfg.RequestTimeout, cfg.RSSRatePerMin, log))

	// 5. ドメインサービスの初期化
	subService := subscription.NewService(
		platforms, feedRepo, itemRepo, subscriberRepo, subscriptionRepo,
		sanitizer, log,
	)

	tracker := voice.NewTracker(voiceRepo, collector, log)
	heartbeat := voice.NewHeartbeatManager(tracker, voiceRepo, metaRepo, log)
	settingsService := settings.NewService(settingsRepo, tracker, log)

	var deliverySink sink.Sink
	if cfg.WebhookURL != "" {
		deliverySink = sink.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout, log)
	} else {
		slog.Warn("WEBHOOK_URL is not set, falling back to log sink")
		deliverySink = sink.NewLogSink(log)
	}

	pub := publisher.NewPublisher(
		platforms, feedRepo, itemRepo, subscriptionRepo,
		deliverySink, collector, log, cfg.PollMaxConcurrent,
	)

	// 6. 起動時の状態復旧
	// ハートビートを開始する前に前回プロセスの孤立セッションを閉じる
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if _, err := heartbeat.RecoverFromCrash(startupCtx); err != nil {
		return fmt.Errorf("crash recovery failed: %w", err)
	}
	if err := tracker.SeedDisabledGuilds(startupCtx, settingsRepo); err != nil {
		return fmt.Errorf("failed to seed disabled guilds: %w", err)
	}
	if err := metaRepo.Set(startupCtx, model.MetaKeyBotVersion, Version); err != nil {
		slog.Warn("failed to record version", slog.String("error", err.Error()))
	}

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:       db,
		Logger:              log,
		MetricsHandler:      metrics.Handler(registry),
		SubscriptionService: subService,
		FeedService:         subService,
		VoiceService:        tracker,
		SettingsService:     settingsService,
	})

	// 8. バックグラウンドタスクの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pub.Start(ctx, cfg.PollInterval)
	go heartbeat.Start(ctx, cfg.HeartbeatInterval)

	// クリーンアップジョブを日次でバックグラウンド実行
	cleanupJob := cleanup.NewCleanupJob(db, log)
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down...")

	// バックグラウンドタスクを停止してからHTTPサーバーを閉じる
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("stopped gracefully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
