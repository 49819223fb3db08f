// Package sink はフィード更新イベントの配送先を提供する。
// パブリッシャーは検出した更新をSink経由で購読者へ引き渡す。
package sink

import (
	"context"

	"github.com/hitoshi/shinkan/internal/model"
)

// Sink は更新イベントの配送インターフェース。
// 配送は少なくとも1回（at-least-once）で、リトライ方針はSink実装が持つ。
type Sink interface {
	// Notify は1人の購読者へ更新イベントを配送する。
	Notify(ctx context.Context, subscriber *model.Subscriber, event *model.FeedUpdateEvent) error
}
