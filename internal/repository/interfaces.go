// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feed, error)

	// FindByPlatformAndSourceID はプラットフォームIDとソースIDでフィードを検索する。
	// 見つからない場合はnilを返す。
	FindByPlatformAndSourceID(ctx context.Context, platformID, sourceID string) (*model.Feed, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.Feed) error

	// Update はフィードのメタデータ（名前、説明、カバー画像）を更新する。
	Update(ctx context.Context, feed *model.Feed) error

	// ListAll は全フィードを返す。
	ListAll(ctx context.Context) ([]*model.Feed, error)

	// ListWithSubscribers は購読者が1人以上存在するフィードを返す。
	// ポーリング対象の列挙に使用する。
	ListWithSubscribers(ctx context.Context) ([]*model.Feed, error)

	// Delete は指定IDのフィードを削除する。
	// 関連するfeed_items、subscriptionsはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// ItemRepository はフィードアイテムの永続化インターフェース。
type ItemRepository interface {
	// FindLatestByFeedID はフィードの最新アイテム（published最大の行）を取得する。
	// 見つからない場合はnilを返す。
	FindLatestByFeedID(ctx context.Context, feedID string) (*model.FeedItem, error)

	// Create はアイテムを作成する。
	Create(ctx context.Context, item *model.FeedItem) error

	// ListByFeedID はフィードのアイテムをpublished降順で返す。
	ListByFeedID(ctx context.Context, feedID string, limit int) ([]*model.FeedItem, error)
}

// SubscriberRepository は購読者（ギルドまたはユーザー）の永続化インターフェース。
type SubscriberRepository interface {
	// FindByTypeAndTargetID は種別と対象IDで購読者を検索する。見つからない場合はnilを返す。
	FindByTypeAndTargetID(ctx context.Context, subType model.SubscriberType, targetID string) (*model.Subscriber, error)

	// Create は購読者を作成する。
	Create(ctx context.Context, subscriber *model.Subscriber) error
}

// SubscriptionRepository は購読関係の永続化インターフェース。
type SubscriptionRepository interface {
	// Create は購読を作成する。
	// 同一の(feed_id, subscriber_id)が既に存在する場合は一意制約違反を返す。
	Create(ctx context.Context, subscription *model.Subscription) error

	// Delete はフィードIDと購読者IDで購読を削除する。
	// 削除した場合はtrueを返す。
	Delete(ctx context.Context, feedID, subscriberID string) (bool, error)

	// CountByFeedID はフィードの購読者数を返す。
	CountByFeedID(ctx context.Context, feedID string) (int, error)

	// CountBySubscriberID は購読者の購読数を返す。
	CountBySubscriberID(ctx context.Context, subscriberID string) (int, error)

	// ListFeedsWithLatest は購読者の購読フィード一覧を最新アイテム付きで返す。
	// フィード名昇順でoffset/limitページネーションを使用する。
	ListFeedsWithLatest(ctx context.Context, subscriberID string, offset, limit int) ([]model.FeedWithLatest, error)

	// SearchFeedsWithLatest は購読者の購読フィードを名前の部分一致で検索する。
	SearchFeedsWithLatest(ctx context.Context, subscriberID, query string, limit int) ([]model.FeedWithLatest, error)

	// ListSubscribersByFeedID はフィードの全購読者を返す。
	ListSubscribersByFeedID(ctx context.Context, feedID string) ([]*model.Subscriber, error)
}

// VoiceSessionRepository はボイスセッションの永続化インターフェース。
type VoiceSessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.VoiceSession) error

	// FindActive は指定ユーザー・チャンネルのアクティブセッション
	// （leave_time = join_time の行）を取得する。見つからない場合はnilを返す。
	FindActive(ctx context.Context, userID, channelID int64) (*model.VoiceSession, error)

	// UpdateLeaveTime は指定セッションのleave_timeを更新する。
	// join_timeまで一致させることで対象行を特定する。
	UpdateLeaveTime(ctx context.Context, userID, channelID int64, joinTime, leaveTime time.Time) error

	// CloseAllActiveAt は全アクティブセッションをcloseTimeで閉じ、閉じた行数を返す。
	// クラッシュ後の復旧に使用する。
	CloseAllActiveAt(ctx context.Context, closeTime time.Time) (int64, error)

	// ListByGuildInRange はギルドのセッションを期間で絞り込んで返す。
	// sinceとuntilはnilの場合フィルタしない。
	ListByGuildInRange(ctx context.Context, guildID int64, since, until *time.Time) ([]*model.VoiceSession, error)
}

// SettingsRepository はギルド設定の永続化インターフェース。
type SettingsRepository interface {
	// Find は指定ギルドの設定を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, guildID int64) (*model.ServerSettings, error)

	// Upsert はギルド設定を冪等に保存する。
	Upsert(ctx context.Context, guildID int64, settings *model.ServerSettings) error

	// ListVoiceDisabledGuilds はボイストラッキングが明示的に無効化された
	// ギルドIDの一覧を返す。起動時のキャッシュ初期化に使用する。
	ListVoiceDisabledGuilds(ctx context.Context) ([]int64, error)
}

// MetaRepository はbot_metaテーブル（キーバリュー）の永続化インターフェース。
type MetaRepository interface {
	// Get は指定キーの値を取得する。見つからない場合は空文字を返す。
	Get(ctx context.Context, key model.MetaKey) (string, error)

	// Set は指定キーの値を冪等に保存する。
	Set(ctx context.Context, key model.MetaKey, value string) error
}
