// Package model はドメインモデルを定義する。
package model

import "time"

// Feed は監視対象のコンテンツソースを表す。
// 1つのFeedは特定プラットフォーム上の1作品（マンガ・アニメ等）に対応する。
// (platform_id, source_id) の組で一意。
type Feed struct {
	ID          string
	PlatformID  string // プラットフォーム識別子（例: "mangadex", "anilist", "comick"）
	SourceID    string // プラットフォーム固有のソース識別子（URLの算出に使用）
	ItemsID     string // アイテム取得用の識別子（source_idと異なる場合がある。例: slugとhid）
	Name        string
	Description string
	SourceURL   string // 正規のソースURL。(platform_id, source_id) から再現可能
	CoverURL    string
	Tags        string // カンマ区切りのタグ（例: "series"）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FeedItem はフィードの1リリース（チャプター/エピソード）を表す。
// Publisherが新しいアイテムを観測した時に挿入され、以後変更されない。
// フィードの「最新」は published が最大の行。
type FeedItem struct {
	ID          string
	FeedID      string
	Description string // 人間可読なリリース識別子（例: "Chapter 127", "12"）
	Published   time.Time
	CreatedAt   time.Time
}

// SubscriberType は通知先の種別を表す。
type SubscriberType string

const (
	// SubscriberTypeGuild はギルドチャンネルへの通知を示す。
	SubscriberTypeGuild SubscriberType = "guild"
	// SubscriberTypeDirect はダイレクトメッセージへの通知を示す。
	SubscriberTypeDirect SubscriberType = "direct"
)

// Subscriber は通知先を表す。(type, target_id) の組で一意。
type Subscriber struct {
	ID       string
	Type     SubscriberType
	TargetID string // チャンネルIDまたはユーザーID（不透明な文字列）
}

// Subscription はフィードと購読者の多対多リンクを表す。
// (feed_id, subscriber_id) の組で一意。どちらかの削除で連鎖削除される。
type Subscription struct {
	ID           string
	FeedID       string
	SubscriberID string
	CreatedAt    time.Time
}

// FeedWithLatest はフィードとその最新アイテムを結合したモデル。
// 購読一覧のページネーションで使用される。最新アイテムが無い場合Latestはnil。
type FeedWithLatest struct {
	Feed
	Latest *FeedItem
}
