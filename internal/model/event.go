package model

import "time"

// FeedUpdateItem はFeedUpdateEventに含まれるアイテムのスナップショット。
type FeedUpdateItem struct {
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
}

// FeedUpdateEvent はフィードの更新検出時にPublisherが発行するイベント。
// 該当フィードの全購読者に対して配送される（at-least-once）。
// PreviousItemは初回検出時nil。
type FeedUpdateEvent struct {
	FeedID       string          `json:"feed_id"`
	FeedName     string          `json:"feed_name"`
	SourceURL    string          `json:"source_url"`
	CoverURL     string          `json:"cover_url"`
	Item         FeedUpdateItem  `json:"item"`
	PreviousItem *FeedUpdateItem `json:"previous_item,omitempty"`
}
