package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/shinkan/internal/middleware"
)

// HealthChecker はヘルスチェックのためのDB疎通確認インターフェース。
// *sql.DBがこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker HealthChecker
	Logger        *slog.Logger

	// /metrics用ハンドラー。nilの場合はルートを公開しない。
	MetricsHandler http.Handler

	SubscriptionService SubscriptionServiceInterface
	FeedService         FeedServiceInterface
	VoiceService        VoiceServiceInterface
	SettingsService     SettingsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
//
// このAPIは信頼されたボットシェルからのみ呼ばれる内部APIであり、
// 認証・CORS・レート制限は持たない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	subHandler := NewSubscriptionHandler(deps.SubscriptionService)
	feedHandler := NewFeedHandler(deps.FeedService)
	voiceHandler := NewVoiceHandler(deps.VoiceService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()

		if err := deps.HealthChecker.PingContext(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// メトリクス
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 購読管理
	r.Route("/api/subscriptions", func(r chi.Router) {
		r.Post("/", subHandler.Subscribe)
		r.Get("/", subHandler.List)
		r.Get("/search", subHandler.Search)
		r.Delete("/", subHandler.UnsubscribeByURL)
		r.Delete("/{feedID}", subHandler.Unsubscribe)
	})

	// フィード参照
	r.Route("/api/feeds", func(r chi.Router) {
		r.Get("/{id}", feedHandler.GetFeed)
	})

	// ボイストラッキング
	r.Route("/api/voice", func(r chi.Router) {
		r.Post("/events", voiceHandler.HandleEvent)
		r.Get("/leaderboard", voiceHandler.Leaderboard)
	})

	// ギルド設定
	r.Route("/api/settings/{guildID}", func(r chi.Router) {
		r.Get("/", settingsHandler.Get)
		r.Patch("/feeds", settingsHandler.UpdateFeeds)
		r.Patch("/voice", settingsHandler.UpdateVoice)
	})

	return r
}
