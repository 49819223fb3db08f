package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// webhookPayload はWebhookに送信するJSONボディ。
// 外部のボットシェルがこれを受け取り、各プラットフォームのメッセージに変換する。
type webhookPayload struct {
	SubscriberType model.SubscriberType   `json:"subscriber_type"`
	TargetID       string                 `json:"target_id"`
	Event          *model.FeedUpdateEvent `json:"event"`
}

// WebhookSink は更新イベントをHTTP Webhookへ配送するSink。
type WebhookSink struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink はWebhookSinkを生成する。
func NewWebhookSink(url string, timeout time.Duration, logger *slog.Logger) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify はイベントをJSONでPOSTする。2xx以外のレスポンスはエラーになる。
func (s *WebhookSink) Notify(ctx context.Context, subscriber *model.Subscriber, event *model.FeedUpdateEvent) error {
	payload := webhookPayload{
		SubscriberType: subscriber.Type,
		TargetID:       subscriber.TargetID,
		Event:          event,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ペイロードのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Webhookへの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Webhookがエラーを返しました: status=%d", resp.StatusCode)
	}

	s.logger.Debug("更新イベントを配送しました",
		slog.String("feed_id", event.FeedID),
		slog.String("target_id", subscriber.TargetID),
	)
	return nil
}
