// Package subscription は購読管理のドメインロジックを提供する。
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/platform"
	"github.com/hitoshi/shinkan/internal/repository"
	"github.com/hitoshi/shinkan/internal/security"
)

// DefaultPageSize は購読一覧の1ページあたりの件数。
const DefaultPageSize = 10

// pqUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pqUniqueViolation = "23505"

// SubscribeResult は購読登録の結果を表す。
type SubscribeResult struct {
	Feed *model.Feed
	// AlreadySubscribed は同じ購読が既に存在していた場合true。
	// 購読登録は冪等で、この場合もFeedは同じフィードを指す。
	AlreadySubscribed bool
}

// Service は購読管理のサービス層。
// URLからのフィード解決、購読の登録・解除、購読一覧の取得を提供する。
type Service struct {
	registry         *platform.Registry
	feedRepo         repository.FeedRepository
	itemRepo         repository.ItemRepository
	subscriberRepo   repository.SubscriberRepository
	subscriptionRepo repository.SubscriptionRepository
	sanitizer        security.ContentSanitizerService
	logger           *slog.Logger
	pageSize         int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	registry *platform.Registry,
	feedRepo repository.FeedRepository,
	itemRepo repository.ItemRepository,
	subscriberRepo repository.SubscriberRepository,
	subscriptionRepo repository.SubscriptionRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		registry:         registry,
		feedRepo:         feedRepo,
		itemRepo:         itemRepo,
		subscriberRepo:   subscriberRepo,
		subscriptionRepo: subscriptionRepo,
		sanitizer:        sanitizer,
		logger:           logger,
		pageSize:         DefaultPageSize,
	}
}

// Subscribe はURLで指定されたソースへの購読を登録する。
// フィードが未登録の場合はソースのメタデータを取得して作成し、
// その時点の最新アイテムを記録する（登録時の既存アイテムは配信対象にしない）。
// 同じ購読が既に存在する場合も成功として同じフィードを返す（冪等）。
func (s *Service) Subscribe(ctx context.Context, rawURL string, subType model.SubscriberType, targetID string) (*SubscribeResult, error) {
	p, err := s.registry.BySourceURL(rawURL)
	if err != nil {
		return nil, model.NewUnsupportedURLError(rawURL)
	}

	sourceID, err := p.IDFromSourceURL(rawURL)
	if err != nil {
		return nil, model.NewUnsupportedURLError(rawURL)
	}

	feed, err := s.feedRepo.FindByPlatformAndSourceID(ctx, p.Info().ID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("フィードの検索に失敗しました: %w", err)
	}
	if feed == nil {
		feed, err = s.createFeed(ctx, p, sourceID)
		if err != nil {
			return nil, err
		}
	}

	subscriber, err := s.getOrCreateSubscriber(ctx, subType, targetID)
	if err != nil {
		return nil, err
	}

	subscription := &model.Subscription{
		ID:           uuid.NewString(),
		FeedID:       feed.ID,
		SubscriberID: subscriber.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			// 既に購読済み。冪等に同じフィードを返す。
			return &SubscribeResult{Feed: feed, AlreadySubscribed: true}, nil
		}
		return nil, fmt.Errorf("購読の作成に失敗しました: %w", err)
	}

	s.logger.Info("購読を登録しました",
		slog.String("feed_id", feed.ID),
		slog.String("platform", feed.PlatformID),
		slog.String("subscriber_type", string(subType)),
		slog.String("target_id", targetID),
	)
	return &SubscribeResult{Feed: feed}, nil
}

// createFeed はソースのメタデータを取得してフィードを作成する。
func (s *Service) createFeed(ctx context.Context, p platform.Platform, sourceID string) (*model.Feed, error) {
	src, err := p.FetchSource(ctx, sourceID)
	if err != nil {
		if platform.IsCode(err, platform.CodeSourceNotFound) {
			return nil, model.NewFeedNotFoundError(sourceID)
		}
		return nil, model.NewFetchFailedError(err.Error())
	}

	now := time.Now().UTC()
	feed := &model.Feed{
		ID:          uuid.NewString(),
		PlatformID:  p.Info().ID,
		SourceID:    src.ID,
		ItemsID:     src.ItemsID,
		Name:        src.Name,
		Description: s.sanitizer.Sanitize(src.Description),
		SourceURL:   src.SourceURL,
		CoverURL:    src.CoverURL,
		Tags:        p.Info().Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}

	// 登録時点の最新アイテムを記録しておく。
	// これが無いと次回のポーリングで既存のアイテムが新着として配信されてしまう。
	latest, err := p.FetchLatest(ctx, feed.ItemsID)
	if err != nil {
		// アイテムがまだ無いソースは正常。それ以外も登録自体は成功させる。
		s.logger.Warn("登録時の最新アイテム取得に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		return feed, nil
	}

	item := &model.FeedItem{
		ID:          uuid.NewString(),
		FeedID:      feed.ID,
		Description: latest.Title,
		Published:   latest.Published,
		CreatedAt:   now,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("初期アイテムの記録に失敗しました: %w", err)
	}
	return feed, nil
}

// getOrCreateSubscriber は購読者を取得し、存在しなければ作成する。
func (s *Service) getOrCreateSubscriber(ctx context.Context, subType model.SubscriberType, targetID string) (*model.Subscriber, error) {
	subscriber, err := s.subscriberRepo.FindByTypeAndTargetID(ctx, subType, targetID)
	if err != nil {
		return nil, fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	if subscriber != nil {
		return subscriber, nil
	}

	subscriber = &model.Subscriber{
		ID:       uuid.NewString(),
		Type:     subType,
		TargetID: targetID,
	}
	if err := s.subscriberRepo.Create(ctx, subscriber); err != nil {
		// 並行作成との競合時は取り直す
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return s.subscriberRepo.FindByTypeAndTargetID(ctx, subType, targetID)
		}
		return nil, err
	}
	return subscriber, nil
}

// Unsubscribe は購読を解除する。購読していない場合はエラーを返す。
// フィード自体は購読者がいなくなっても削除しない。
func (s *Service) Unsubscribe(ctx context.Context, feedID string, subType model.SubscriberType, targetID string) error {
	subscriber, err := s.subscriberRepo.FindByTypeAndTargetID(ctx, subType, targetID)
	if err != nil {
		return fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	if subscriber == nil {
		return model.NewSubscriptionNotFoundError(feedID)
	}

	deleted, err := s.subscriptionRepo.Delete(ctx, feedID, subscriber.ID)
	if err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewSubscriptionNotFoundError(feedID)
	}

	s.logger.Info("購読を解除しました",
		slog.String("feed_id", feedID),
		slog.String("subscriber_type", string(subType)),
		slog.String("target_id", targetID),
	)
	return nil
}

// UnsubscribeByURL はソースURLで指定されたフィードの購読を解除する。
// ボットシェルがフィードIDを保持していない場合（URLを直接受け取った場合）に使用する。
func (s *Service) UnsubscribeByURL(ctx context.Context, rawURL string, subType model.SubscriberType, targetID string) error {
	p, err := s.registry.BySourceURL(rawURL)
	if err != nil {
		return model.NewUnsupportedURLError(rawURL)
	}

	sourceID, err := p.IDFromSourceURL(rawURL)
	if err != nil {
		return model.NewUnsupportedURLError(rawURL)
	}

	feed, err := s.feedRepo.FindByPlatformAndSourceID(ctx, p.Info().ID, sourceID)
	if err != nil {
		return fmt.Errorf("フィードの検索に失敗しました: %w", err)
	}
	if feed == nil {
		return model.NewSubscriptionNotFoundError(rawURL)
	}

	return s.Unsubscribe(ctx, feed.ID, subType, targetID)
}

// FeedPage は購読一覧の1ページ分を表す。
type FeedPage struct {
	Feeds      []model.FeedWithLatest
	Page       int
	TotalCount int
}

// ListPage は購読者の購読フィード一覧をページ単位で返す。ページ番号は1始まり。
func (s *Service) ListPage(ctx context.Context, subType model.SubscriberType, targetID string, page int) (*FeedPage, error) {
	if page < 1 {
		return nil, model.NewInvalidPageError(page)
	}

	subscriber, err := s.subscriberRepo.FindByTypeAndTargetID(ctx, subType, targetID)
	if err != nil {
		return nil, fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	if subscriber == nil {
		return &FeedPage{Page: page}, nil
	}

	total, err := s.subscriptionRepo.CountBySubscriberID(ctx, subscriber.ID)
	if err != nil {
		return nil, fmt.Errorf("購読数の取得に失敗しました: %w", err)
	}

	feeds, err := s.subscriptionRepo.ListFeedsWithLatest(ctx, subscriber.ID, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}

	return &FeedPage{Feeds: feeds, Page: page, TotalCount: total}, nil
}

// Search は購読者の購読フィードを名前の部分一致で検索する。
func (s *Service) Search(ctx context.Context, subType model.SubscriberType, targetID, query string) ([]model.FeedWithLatest, error) {
	subscriber, err := s.subscriberRepo.FindByTypeAndTargetID(ctx, subType, targetID)
	if err != nil {
		return nil, fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	if subscriber == nil {
		return nil, nil
	}

	feeds, err := s.subscriptionRepo.SearchFeedsWithLatest(ctx, subscriber.ID, query, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("購読フィードの検索に失敗しました: %w", err)
	}
	return feeds, nil
}

// FeedDetail はフィードの詳細と購読者数を表す。
type FeedDetail struct {
	model.Feed
	Latest          *model.FeedItem
	SubscriberCount int
}

// GetFeed はフィードの詳細を最新アイテムと購読者数付きで返す。
func (s *Service) GetFeed(ctx context.Context, feedID string) (*FeedDetail, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}

	latest, err := s.itemRepo.FindLatestByFeedID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("最新アイテムの取得に失敗しました: %w", err)
	}

	count, err := s.subscriptionRepo.CountByFeedID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("購読者数の取得に失敗しました: %w", err)
	}

	return &FeedDetail{Feed: *feed, Latest: latest, SubscriberCount: count}, nil
}
