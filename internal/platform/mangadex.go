package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	mangadexAPIURL    = "https://api.mangadex.org"
	mangadexUploadURL = "https://uploads.mangadex.org"
	mangadexDomain    = "mangadex.org"

	// mangadexDefaultRatePerSec はMangaDexのレート上限（5回/秒）。
	mangadexDefaultRatePerSec = 5
)

// mangadexTitleLangs はタイトル選択の言語優先順位。
var mangadexTitleLangs = []string{"en", "ja-ro", "ja"}

// MangaDexPlatform はMangaDex REST APIへのアダプタ。
type MangaDexPlatform struct {
	*Base
	apiURL    string
	uploadURL string
}

var _ Platform = (*MangaDexPlatform)(nil)

// NewMangaDexPlatform はMangaDexPlatformを生成する。
// ratePerSecが0以下の場合はデフォルトのレート上限を使う。
func NewMangaDexPlatform(client *http.Client, ratePerSec int, logger *slog.Logger) *MangaDexPlatform {
	if ratePerSec <= 0 {
		ratePerSec = mangadexDefaultRatePerSec
	}
	info := Info{
		ID:       "mangadex",
		Name:     "MangaDex",
		ItemName: "Chapter",
		APIURL:   mangadexAPIURL,
		LogoURL:  "https://mangadex.org/img/brand/mangadex-logo.svg",
		Tags:     "manga",
	}
	return &MangaDexPlatform{
		Base:      NewBase(info, client, perSecond(ratePerSec), logger),
		apiURL:    mangadexAPIURL,
		uploadURL: mangadexUploadURL,
	}
}

type mangadexError struct {
	Title  *string `json:"title"`
	Detail *string `json:"detail"`
}

type mangadexMangaResponse struct {
	Errors []mangadexError `json:"errors"`
	Data   *struct {
		Attributes *struct {
			Title       map[string]string   `json:"title"`
			AltTitles   []map[string]string `json:"altTitles"`
			Description map[string]string   `json:"description"`
		} `json:"attributes"`
		Relationships []struct {
			Type       string `json:"type"`
			Attributes *struct {
				FileName *string `json:"fileName"`
			} `json:"attributes"`
		} `json:"relationships"`
	} `json:"data"`
}

type mangadexFeedResponse struct {
	Errors []mangadexError `json:"errors"`
	Data   *[]struct {
		ID         *string `json:"id"`
		Attributes *struct {
			Chapter   *string `json:"chapter"`
			PublishAt *string `json:"publishAt"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchSource は作品のメタデータをカバー画像込みで取得する。
func (p *MangaDexPlatform) FetchSource(ctx context.Context, id string) (*Source, error) {
	if err := p.validateID(id); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/manga/%s?includes[]=cover_art", p.apiURL, id)
	var resp mangadexMangaResponse
	if _, err := p.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if err := mangadexCheckErrors(resp.Errors); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, NewSourceNotFoundError(id)
	}
	attrs := resp.Data.Attributes
	if attrs == nil {
		return nil, NewMissingFieldError("data.attributes")
	}

	name, err := mangadexPickTitle(attrs.Title, attrs.AltTitles)
	if err != nil {
		return nil, err
	}

	description := ""
	for _, lang := range mangadexTitleLangs {
		if v, ok := attrs.Description[lang]; ok && v != "" {
			description = v
			break
		}
	}

	coverURL := ""
	for _, rel := range resp.Data.Relationships {
		if rel.Type == "cover_art" && rel.Attributes != nil && rel.Attributes.FileName != nil {
			coverURL = fmt.Sprintf("%s/covers/%s/%s", p.uploadURL, id, *rel.Attributes.FileName)
			break
		}
	}

	return &Source{
		ID:          id,
		ItemsID:     id,
		Name:        name,
		Description: description,
		SourceURL:   p.SourceURLFromID(id),
		CoverURL:    coverURL,
	}, nil
}

// FetchLatest は作品フィードの最新チャプターを取得する。
// 翻訳言語は英語とインドネシア語に限定し、作成日時の降順で先頭1件を読む。
func (p *MangaDexPlatform) FetchLatest(ctx context.Context, itemsID string) (*Item, error) {
	if err := p.validateID(itemsID); err != nil {
		return nil, err
	}

	url := fmt.Sprintf(
		"%s/manga/%s/feed?order[createdAt]=desc&limit=1&translatedLanguage[]=en&translatedLanguage[]=id",
		p.apiURL, itemsID,
	)
	var resp mangadexFeedResponse
	if _, err := p.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if err := mangadexCheckErrors(resp.Errors); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, NewMissingFieldError("data")
	}
	chapters := *resp.Data
	if len(chapters) == 0 {
		return nil, NewEmptySourceError(itemsID)
	}

	attrs := chapters[0].Attributes
	if attrs == nil {
		return nil, NewMissingFieldError("data.0.attributes")
	}
	if attrs.Chapter == nil {
		return nil, NewMissingFieldError("data.0.attributes.chapter")
	}
	if attrs.PublishAt == nil {
		return nil, NewMissingFieldError("data.0.attributes.publishAt")
	}

	published, err := time.Parse(time.RFC3339, *attrs.PublishAt)
	if err != nil {
		return nil, NewInvalidTimeError(*attrs.PublishAt)
	}

	itemID := ""
	if chapters[0].ID != nil {
		itemID = *chapters[0].ID
	}

	return &Item{
		ID:        itemID,
		Title:     *attrs.Chapter,
		Published: published.UTC(),
	}, nil
}

// IDFromSourceURL は https://mangadex.org/title/{uuid}/... 形式のURLからIDを抽出する。
func (p *MangaDexPlatform) IDFromSourceURL(rawURL string) (string, error) {
	id, err := p.NthPathSegment(rawURL, mangadexDomain, 1)
	if err != nil {
		return "", err
	}
	if err := p.validateID(id); err != nil {
		return "", err
	}
	return id, nil
}

// SourceURLFromID はIDから公開URLを構築する。
func (p *MangaDexPlatform) SourceURLFromID(id string) string {
	return fmt.Sprintf("https://mangadex.org/title/%s", id)
}

// validateID はIDがUUIDとして妥当かを検証する。
func (p *MangaDexPlatform) validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return NewInvalidSourceIDError(id)
	}
	return nil
}

// mangadexPickTitle は言語優先順位に従ってタイトルを選択する。
// 各言語についてtitleを先に、次にaltTitlesを順に調べる。
func mangadexPickTitle(title map[string]string, altTitles []map[string]string) (string, error) {
	for _, lang := range mangadexTitleLangs {
		if v, ok := title[lang]; ok && v != "" {
			return v, nil
		}
		for _, alt := range altTitles {
			if v, ok := alt[lang]; ok && v != "" {
				return v, nil
			}
		}
	}
	return "", NewMissingFieldError("data.attributes.title")
}

// mangadexCheckErrors はAPIのエラー配列を検査し、先頭のエラーを返す。
func mangadexCheckErrors(errs []mangadexError) error {
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	if first.Detail != nil && *first.Detail != "" {
		return NewAPIError(*first.Detail)
	}
	if first.Title != nil && *first.Title != "" {
		return NewAPIError(*first.Title)
	}
	return NewAPIError("Unknown API error")
}
