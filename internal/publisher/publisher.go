// Package publisher はフィードの定期ポーリングと更新検出・配送を提供する。
// ティッカーでポーリングサイクルを駆動し、semaphoreパターンで
// 最大並列数を制御しながらフィードごとの更新チェックを実行する。
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shinkan/internal/metrics"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/platform"
	"github.com/hitoshi/shinkan/internal/repository"
	"github.com/hitoshi/shinkan/internal/sink"
)

// Publisher はフィードのポーリングサイクルを実行する。
// 購読者が存在するフィードのみをポーリング対象とし、
// 新アイテムの検出時に全購読者へイベントを配送する。
type Publisher struct {
	registry         *platform.Registry
	feedRepo         repository.FeedRepository
	itemRepo         repository.ItemRepository
	subscriptionRepo repository.SubscriptionRepository
	sink             sink.Sink
	collector        metrics.MetricsCollector
	logger           *slog.Logger
	maxConcurrency   int
}

// NewPublisher はPublisherの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はプラットフォーム数の2倍を使用する。
func NewPublisher(
	registry *platform.Registry,
	feedRepo repository.FeedRepository,
	itemRepo repository.ItemRepository,
	subscriptionRepo repository.SubscriptionRepository,
	s sink.Sink,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Publisher {
	if maxConcurrency <= 0 {
		maxConcurrency = len(registry.All()) * 2
		if maxConcurrency <= 0 {
			maxConcurrency = 2
		}
	}
	if collector == nil {
		collector = metrics.NewNopCollector()
	}
	return &Publisher{
		registry:         registry,
		feedRepo:         feedRepo,
		itemRepo:         itemRepo,
		subscriptionRepo: subscriptionRepo,
		sink:             s,
		collector:        collector,
		logger:           logger,
		maxConcurrency:   maxConcurrency,
	}
}

// Start は指定間隔のティッカーでポーリングサイクルを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Publisher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("ポーリングスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", p.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error("ポーリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ポーリングスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("ポーリングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はポーリング対象フィードを1回取得し、並列で更新チェックを実行する。
// フィード単位の失敗はログに記録され、他フィードのチェックには影響しない。
func (p *Publisher) RunOnce(ctx context.Context) error {
	start := time.Now()

	feeds, err := p.feedRepo.ListWithSubscribers(ctx)
	if err != nil {
		return err
	}

	if len(feeds) == 0 {
		p.logger.Debug("ポーリング対象のフィードはありません")
		return nil
	}

	p.logger.Info("ポーリングサイクルを開始します",
		slog.Int("feed_count", len(feeds)),
	)

	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for _, feed := range feeds {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(f *model.Feed) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := p.checkFeed(ctx, f); err != nil {
				p.collector.RecordPollFailure(f.PlatformID, errorReason(err))
				p.logger.Error("フィードの更新チェックに失敗しました",
					slog.String("feed_id", f.ID),
					slog.String("platform_id", f.PlatformID),
					slog.String("error", err.Error()),
				)
			} else {
				p.collector.RecordPollSuccess(f.PlatformID)
			}
		}(feed)
	}

	wg.Wait()

	elapsed := time.Since(start)
	p.collector.RecordPollLatency(elapsed)
	p.logger.Info("ポーリングサイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// checkFeed は1フィードの最新アイテムを取得し、永続化済みの最新と比較する。
// 新しいアイテムを検出した場合、feed_itemsに記録し全購読者へ配送する。
func (p *Publisher) checkFeed(ctx context.Context, feed *model.Feed) error {
	plat := p.registry.ByID(feed.PlatformID)
	if plat == nil {
		return model.NewFetchFailedError(feed.PlatformID)
	}

	itemsID := feed.ItemsID
	if itemsID == "" {
		itemsID = feed.SourceID
	}

	latest, err := plat.FetchLatest(ctx, itemsID)
	if err != nil {
		// アイテム未公開のソースは更新なしとして扱う
		if platform.IsCode(err, platform.CodeItemNotFound) || platform.IsCode(err, platform.CodeEmptySource) {
			p.logger.Debug("フィードにアイテムがありません",
				slog.String("feed_id", feed.ID),
			)
			return nil
		}
		return err
	}

	persisted, err := p.itemRepo.FindLatestByFeedID(ctx, feed.ID)
	if err != nil {
		return err
	}

	if persisted != nil && !isNewer(latest, persisted) {
		return nil
	}

	item := &model.FeedItem{
		ID:          uuid.NewString(),
		FeedID:      feed.ID,
		Description: latest.Title,
		Published:   latest.Published,
	}
	if err := p.itemRepo.Create(ctx, item); err != nil {
		return err
	}

	event := &model.FeedUpdateEvent{
		FeedID:    feed.ID,
		FeedName:  feed.Name,
		SourceURL: feed.SourceURL,
		CoverURL:  feed.CoverURL,
		Item: model.FeedUpdateItem{
			Title:     latest.Title,
			Published: latest.Published,
		},
	}
	if persisted != nil {
		event.PreviousItem = &model.FeedUpdateItem{
			Title:     persisted.Description,
			Published: persisted.Published,
		}
	}

	p.collector.RecordUpdatePublished(feed.PlatformID)
	p.logger.Info("フィードの更新を検出しました",
		slog.String("feed_id", feed.ID),
		slog.String("feed_name", feed.Name),
		slog.String("item_title", latest.Title),
		slog.Time("published", latest.Published),
	)

	p.deliver(ctx, feed, event)
	return nil
}

// isNewer は取得したアイテムが永続化済みの最新より新しいかどうかを判定する。
// published が進んでいる場合に加え、同時刻でタイトルが変わった場合
// （リリースの改題・差し替え）も更新として扱う。
func isNewer(latest *platform.Item, persisted *model.FeedItem) bool {
	if latest.Published.After(persisted.Published) {
		return true
	}
	return latest.Title != persisted.Description && !latest.Published.Before(persisted.Published)
}

// deliver はイベントをフィードの全購読者に配送する。
// 配送失敗はログに記録するのみでリトライしない。
func (p *Publisher) deliver(ctx context.Context, feed *model.Feed, event *model.FeedUpdateEvent) {
	subscribers, err := p.subscriptionRepo.ListSubscribersByFeedID(ctx, feed.ID)
	if err != nil {
		p.logger.Error("購読者一覧の取得に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, sub := range subscribers {
		if err := p.sink.Notify(ctx, sub, event); err != nil {
			p.collector.RecordDelivery(false)
			p.logger.Error("更新イベントの配送に失敗しました",
				slog.String("feed_id", feed.ID),
				slog.String("subscriber_id", sub.ID),
				slog.String("target_id", sub.TargetID),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.collector.RecordDelivery(true)
	}
}

// errorReason はメトリクスのreasonラベル用にエラーコードを抽出する。
func errorReason(err error) string {
	var perr *platform.Error
	if errors.As(err, &perr) {
		return string(perr.Code)
	}
	return "INTERNAL"
}
