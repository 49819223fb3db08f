// Package platform は外部コンテンツプラットフォーム（AniList、MangaDex、Comick等）への
// 統一アダプタを提供する。各アダプタはソースのメタデータ取得、最新アイテム取得、
// URLとソースIDの相互変換を担当する。
package platform

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseBodySize はレスポンスボディの最大読み込みサイズ（10MB）。
const maxResponseBodySize = 10 * 1024 * 1024

// Info はプラットフォームの静的なメタデータを表す。
type Info struct {
	// ID はレジストリ内の一意なプラットフォーム識別子（例: "anilist"）。
	ID string
	// Name は表示名（例: "AniList"）。
	Name string
	// ItemName はアイテムの呼称（例: "Episode", "Chapter"）。
	ItemName string
	// APIURL はAPIのベースURL。レジストリのルーティングにも使われる。
	APIURL string
	// LogoURL はプラットフォームのロゴ画像URL。
	LogoURL string
	// Tags はこのプラットフォームのフィードに付与されるタグ。
	Tags string
}

// Source はプラットフォーム上の作品（フィードの元）のメタデータを表す。
type Source struct {
	// ID はメタデータ取得に使うソース識別子。
	ID string
	// ItemsID はアイテム取得に使う識別子。多くのプラットフォームではIDと同一。
	ItemsID string
	// Name は作品タイトル。
	Name string
	// Description は作品の説明文。
	Description string
	// SourceURL は作品の正規URL。
	SourceURL string
	// CoverURL はカバー画像URL。
	CoverURL string
}

// Item はソースの1アイテム（最新話など）を表す。
type Item struct {
	// ID はプラットフォーム固有のアイテム識別子。提供されない場合は空。
	ID string
	// Title はアイテムのタイトルまたは番号。
	Title string
	// Published は公開日時（UTC）。
	Published time.Time
}

// Platform は外部コンテンツプラットフォームへのアダプタのインターフェース。
type Platform interface {
	// Info はプラットフォームの静的メタデータを返す。
	Info() Info
	// FetchSource は指定IDのソースのメタデータを取得する。
	FetchSource(ctx context.Context, id string) (*Source, error)
	// FetchLatest は指定ItemsIDの最新アイテムを取得する。
	FetchLatest(ctx context.Context, itemsID string) (*Item, error)
	// IDFromSourceURL は公開URLからソースIDを抽出する。
	IDFromSourceURL(rawURL string) (string, error)
	// SourceURLFromID はソースIDから公開URLを構築する。
	SourceURLFromID(id string) string
}

// Base は全アダプタ共通のHTTPクライアントとレートリミッタを保持する。
type Base struct {
	info    Info
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBase はBaseを生成する。
func NewBase(info Info, client *http.Client, limiter *rate.Limiter, logger *slog.Logger) *Base {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Base{
		info:    info,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// Info はプラットフォームの静的メタデータを返す。
func (b *Base) Info() Info {
	return b.info
}

// Do はレートリミッタを通過してからHTTPリクエストを送信する。
// リミッタの待機中にctxがキャンセルされた場合はエラーを返す。
func (b *Base) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if b.limiter != nil {
		if b.limiter.Tokens() < 1 {
			b.logger.Debug("レートリミットにより待機します",
				slog.String("platform", b.info.ID),
				slog.String("url", req.URL.String()),
			)
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, NewTransportError(err)
		}
	}

	b.logger.Debug("APIリクエストを送信します",
		slog.String("platform", b.info.ID),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, NewTransportError(err)
	}
	return resp, nil
}

// WaitLimit はレートリミッタの許可を待つ。自前でHTTPリクエストを組み立てず
// 外部ライブラリにフェッチを委ねるアダプタが、送信前に呼び出す。
func (b *Base) WaitLimit(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return NewTransportError(err)
	}
	return nil
}

// GetJSON はGETリクエストを送信し、レスポンスボディをvにデコードする。
// ステータスコードの解釈は呼び出し側に委ねるため、ここではボディのパースのみ行う。
func (b *Base) GetJSON(ctx context.Context, url string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, NewTransportError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, NewTransportError(err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, NewJSONParseError(err)
	}
	return resp.StatusCode, nil
}

// PostJSON はJSONボディをPOSTし、レスポンスボディをvにデコードする。
func (b *Base) PostJSON(ctx context.Context, url string, payload any, v any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, NewJSONParseError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(raw)))
	if err != nil {
		return 0, NewTransportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, NewTransportError(err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, NewJSONParseError(err)
	}
	return resp.StatusCode, nil
}

// userAgent は外部APIへのリクエストに付与するUA文字列。
const userAgent = "shinkan/1.0 (+https://github.com/hitoshi/shinkan)"

// NthPathSegment はrawURLからAPIドメイン以降のパスを取り出し、
// 空要素を除いたn番目（0始まり）のセグメントを返す。
// rawURLにドメインが含まれない場合はInvalidFormat、
// セグメントが足りない場合はMissingIDを返す。
func (b *Base) NthPathSegment(rawURL, domain string, n int) (string, error) {
	idx := strings.Index(rawURL, domain)
	if idx < 0 {
		return "", NewInvalidFormatError(rawURL)
	}

	rest := rawURL[idx+len(domain):]
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(rest, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if n >= len(segments) {
		return "", NewMissingIDError(rawURL)
	}
	return segments[n], nil
}

// perMinute はN回/分のレートリミッタを生成する。
func perMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
}

// perSecond はN回/秒のレートリミッタを生成する。
func perSecond(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(n), n)
}
