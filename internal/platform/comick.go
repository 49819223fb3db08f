package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	comickAPIURL     = "https://api.comick.dev"
	comickPictureURL = "https://meo.comick.pictures"
	comickDomain     = "comick.dev"

	// comickDefaultRatePerMin はComickのレート上限（200回/分）。
	comickDefaultRatePerMin = 200
)

// ComickPlatform はComick REST APIへのアダプタ。
// ソースIDはURLスラッグで、チャプター取得には別途hidを使う。
type ComickPlatform struct {
	*Base
	apiURL     string
	pictureURL string
}

var _ Platform = (*ComickPlatform)(nil)

// NewComickPlatform はComickPlatformを生成する。
// ratePerMinが0以下の場合はデフォルトのレート上限を使う。
func NewComickPlatform(client *http.Client, ratePerMin int, logger *slog.Logger) *ComickPlatform {
	if ratePerMin <= 0 {
		ratePerMin = comickDefaultRatePerMin
	}
	info := Info{
		ID:       "comick",
		Name:     "Comick",
		ItemName: "Chapter",
		APIURL:   comickAPIURL,
		LogoURL:  "https://comick.dev/static/icons/unicorn-256_maskable.png",
		Tags:     "manga",
	}
	return &ComickPlatform{
		Base:       NewBase(info, client, perMinute(ratePerMin), logger),
		apiURL:     comickAPIURL,
		pictureURL: comickPictureURL,
	}
}

type comickComicResponse struct {
	StatusCode json.RawMessage `json:"statusCode"`
	Message    *string         `json:"message"`
	Comic      *struct {
		Hid      *string `json:"hid"`
		Title    *string `json:"title"`
		Desc     *string `json:"desc"`
		MdCovers []struct {
			B2Key *string `json:"b2key"`
		} `json:"md_covers"`
	} `json:"comic"`
}

type comickChaptersResponse struct {
	StatusCode json.RawMessage `json:"statusCode"`
	Message    *string         `json:"message"`
	Chapters   *[]struct {
		Hid       *string `json:"hid"`
		Chap      *string `json:"chap"`
		PublishAt *string `json:"publish_at"`
	} `json:"chapters"`
}

// FetchSource はスラッグから作品のメタデータを取得する。
// 返すSourceのItemsIDはチャプター取得用のhidになる。
func (p *ComickPlatform) FetchSource(ctx context.Context, id string) (*Source, error) {
	url := fmt.Sprintf("%s/comic/%s", p.apiURL, id)
	var resp comickComicResponse
	if _, err := p.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if err := comickCheckStatus(resp.StatusCode, resp.Message); err != nil {
		return nil, err
	}
	comic := resp.Comic
	if comic == nil {
		return nil, NewMissingFieldError("comic")
	}
	if comic.Hid == nil {
		return nil, NewMissingFieldError("comic.hid")
	}
	if comic.Title == nil {
		return nil, NewMissingFieldError("comic.title")
	}
	if comic.Desc == nil {
		return nil, NewMissingFieldError("comic.desc")
	}

	coverURL := ""
	if len(comic.MdCovers) > 0 && comic.MdCovers[0].B2Key != nil {
		coverURL = fmt.Sprintf("%s/%s", p.pictureURL, *comic.MdCovers[0].B2Key)
	}

	return &Source{
		ID:          id,
		ItemsID:     *comic.Hid,
		Name:        *comic.Title,
		Description: *comic.Desc,
		SourceURL:   p.SourceURLFromID(id),
		CoverURL:    coverURL,
	}, nil
}

// FetchLatest はhidから英語版の最新チャプターを取得する。
func (p *ComickPlatform) FetchLatest(ctx context.Context, itemsID string) (*Item, error) {
	url := fmt.Sprintf("%s/comic/%s/chapters?lang=en", p.apiURL, itemsID)
	var resp comickChaptersResponse
	if _, err := p.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if err := comickCheckStatus(resp.StatusCode, resp.Message); err != nil {
		return nil, err
	}
	if resp.Chapters == nil {
		return nil, NewMissingFieldError("chapters")
	}
	chapters := *resp.Chapters
	if len(chapters) == 0 {
		return nil, NewItemNotFoundError(itemsID)
	}

	first := chapters[0]
	if first.Chap == nil {
		return nil, NewMissingFieldError("chapters.0.chap")
	}
	if first.PublishAt == nil {
		return nil, NewMissingFieldError("chapters.0.publish_at")
	}

	published, err := time.Parse(time.RFC3339, *first.PublishAt)
	if err != nil {
		return nil, NewUnexpectedResultError(
			fmt.Sprintf("chapters.0.publish_atの形式が不正です: %s", *first.PublishAt))
	}

	itemID := ""
	if first.Hid != nil {
		itemID = *first.Hid
	}

	return &Item{
		ID:        itemID,
		Title:     *first.Chap,
		Published: published.UTC(),
	}, nil
}

// IDFromSourceURL は https://comick.dev/comic/{slug}/... 形式のURLからスラッグを抽出する。
func (p *ComickPlatform) IDFromSourceURL(rawURL string) (string, error) {
	return p.NthPathSegment(rawURL, comickDomain, 1)
}

// SourceURLFromID はスラッグから公開URLを構築する。
func (p *ComickPlatform) SourceURLFromID(id string) string {
	return fmt.Sprintf("https://comick.dev/comic/%s", id)
}

// comickCheckStatus はエラーレスポンス（statusCodeフィールドの存在）を検査する。
func comickCheckStatus(statusCode json.RawMessage, message *string) error {
	if len(statusCode) == 0 {
		return nil
	}
	if message != nil && *message != "" {
		return NewAPIError(*message)
	}
	return NewAPIError("Unknown error")
}
