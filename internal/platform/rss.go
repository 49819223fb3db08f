package platform

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/shinkan/internal/security"
)

const (
	// rssDefaultRatePerMin は汎用RSSフェッチのレート上限（60回/分）。
	rssDefaultRatePerMin = 60

	// rssMaxResponseSize はRSSフィードの最大レスポンスサイズ（10MB）。
	rssMaxResponseSize = 10 * 1024 * 1024
)

// RSSPlatform は任意のRSS/Atomフィードを扱うフォールバックアダプタ。
// ソースIDはフィードURLそのもの。ユーザー入力の任意URLへアクセスするため、
// SSRF防止機能付きのHTTPクライアントでフェッチする。
type RSSPlatform struct {
	*Base
	guard  security.SSRFGuardService
	parser *gofeed.Parser
}

var _ Platform = (*RSSPlatform)(nil)

// NewRSSPlatform はRSSPlatformを生成する。
// ratePerMinが0以下の場合はデフォルトのレート上限を使う。
func NewRSSPlatform(guard security.SSRFGuardService, timeout time.Duration, ratePerMin int, logger *slog.Logger) *RSSPlatform {
	if ratePerMin <= 0 {
		ratePerMin = rssDefaultRatePerMin
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	info := Info{
		ID:       "rss",
		Name:     "RSS",
		ItemName: "Entry",
		APIURL:   "",
		LogoURL:  "",
		Tags:     "rss",
	}

	var client *http.Client
	if guard != nil {
		client = guard.NewSafeClient(timeout, rssMaxResponseSize)
	} else {
		client = &http.Client{Timeout: timeout}
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &RSSPlatform{
		Base:   NewBase(info, client, perMinute(ratePerMin), logger),
		guard:  guard,
		parser: parser,
	}
}

// fetch はレートリミッタを通過してからフィードを取得・パースする。
func (p *RSSPlatform) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := p.WaitLimit(ctx); err != nil {
		return nil, err
	}
	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusNotFound {
				return nil, NewSourceNotFoundError(feedURL)
			}
			return nil, NewAPIError(httpErr.Error())
		}
		return nil, NewTransportError(err)
	}
	return feed, nil
}

// FetchSource はフィードのチャンネルメタデータを取得する。
func (p *RSSPlatform) FetchSource(ctx context.Context, id string) (*Source, error) {
	if _, err := p.IDFromSourceURL(id); err != nil {
		return nil, err
	}

	feed, err := p.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if feed.Title == "" {
		return nil, NewMissingFieldError("channel.title")
	}

	coverURL := ""
	if feed.Image != nil {
		coverURL = feed.Image.URL
	}
	sourceURL := feed.Link
	if sourceURL == "" {
		sourceURL = id
	}

	return &Source{
		ID:          id,
		ItemsID:     id,
		Name:        feed.Title,
		Description: feed.Description,
		SourceURL:   sourceURL,
		CoverURL:    coverURL,
	}, nil
}

// FetchLatest はフィードの先頭アイテムを取得する。
func (p *RSSPlatform) FetchLatest(ctx context.Context, itemsID string) (*Item, error) {
	feed, err := p.fetch(ctx, itemsID)
	if err != nil {
		return nil, err
	}
	if len(feed.Items) == 0 {
		return nil, NewEmptySourceError(itemsID)
	}

	item := feed.Items[0]
	if item.Title == "" {
		return nil, NewMissingFieldError("items.0.title")
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published == nil {
		return nil, NewInvalidTimeError(item.Published)
	}

	itemID := item.GUID
	if itemID == "" {
		itemID = item.Link
	}

	return &Item{
		ID:        itemID,
		Title:     item.Title,
		Published: published.UTC(),
	}, nil
}

// IDFromSourceURL はURLの安全性を検証し、URLそのものをIDとして返す。
func (p *RSSPlatform) IDFromSourceURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", NewUnsupportedURLError(rawURL)
	}
	if p.guard != nil {
		if err := p.guard.ValidateURL(rawURL); err != nil {
			return "", NewUnsupportedURLError(rawURL)
		}
	}
	return rawURL, nil
}

// SourceURLFromID はIDをそのままURLとして返す。
func (p *RSSPlatform) SourceURLFromID(id string) string {
	return id
}
