package sink

import (
	"context"
	"log/slog"

	"github.com/hitoshi/shinkan/internal/model"
)

// LogSink は更新イベントをログに出力するだけのSink。
// Webhook未設定の構成やローカル動作確認で使用する。
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink はLogSinkを生成する。
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify はイベントをINFOレベルでログに出力する。
func (s *LogSink) Notify(ctx context.Context, subscriber *model.Subscriber, event *model.FeedUpdateEvent) error {
	s.logger.Info("フィード更新",
		slog.String("feed_id", event.FeedID),
		slog.String("feed_name", event.FeedName),
		slog.String("item_title", event.Item.Title),
		slog.Time("published", event.Item.Published),
		slog.String("subscriber_type", string(subscriber.Type)),
		slog.String("target_id", subscriber.TargetID),
	)
	return nil
}
