package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	anilistAPIURL = "https://graphql.anilist.co"
	anilistDomain = "anilist.co"

	// anilistDefaultRatePerMin はAniListのレート上限（30回/分）。
	anilistDefaultRatePerMin = 30

	anilistLatestQuery = `query ($id: Int) {
  AiringSchedule(mediaId: $id, sort: EPISODE_DESC, notYetAired: false) {
    airingAt
    episode
    id
  }
}`

	anilistSourceQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    title {
      romaji
    }
    description(asHtml: false)
    coverImage {
      extraLarge
    }
  }
}`
)

// AniListPlatform はAniList GraphQL APIへのアダプタ。アニメの放映スケジュールを扱う。
type AniListPlatform struct {
	*Base
	apiURL string
}

var _ Platform = (*AniListPlatform)(nil)

// NewAniListPlatform はAniListPlatformを生成する。
// ratePerMinが0以下の場合はデフォルトのレート上限を使う。
func NewAniListPlatform(client *http.Client, ratePerMin int, logger *slog.Logger) *AniListPlatform {
	if ratePerMin <= 0 {
		ratePerMin = anilistDefaultRatePerMin
	}
	info := Info{
		ID:       "anilist",
		Name:     "AniList",
		ItemName: "Episode",
		APIURL:   anilistAPIURL,
		LogoURL:  "https://anilist.co/img/icons/android-chrome-512x512.png",
		Tags:     "anime",
	}
	return &AniListPlatform{
		Base:   NewBase(info, client, perMinute(ratePerMin), logger),
		apiURL: anilistAPIURL,
	}
}

type anilistGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type anilistResponse struct {
	Data *struct {
		AiringSchedule *struct {
			AiringAt *int64          `json:"airingAt"`
			Episode  json.RawMessage `json:"episode"`
			ID       json.RawMessage `json:"id"`
		} `json:"AiringSchedule"`
		Media *struct {
			Title *struct {
				Romaji *string `json:"romaji"`
			} `json:"title"`
			Description *string `json:"description"`
			CoverImage  *struct {
				ExtraLarge *string `json:"extraLarge"`
			} `json:"coverImage"`
		} `json:"Media"`
	} `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// query はGraphQLクエリを実行し、APIのエラー配列を検査してからレスポンスを返す。
func (p *AniListPlatform) query(ctx context.Context, q string, id int64) (*anilistResponse, error) {
	payload := anilistGraphQLRequest{
		Query:     q,
		Variables: map[string]any{"id": id},
	}

	var resp anilistResponse
	if _, err := p.PostJSON(ctx, p.apiURL, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, NewAPIError(extractAPIErrorMessage(resp.Errors[0]))
	}
	return &resp, nil
}

// FetchSource は作品のメタデータをMediaクエリで取得する。
func (p *AniListPlatform) FetchSource(ctx context.Context, id string) (*Source, error) {
	mediaID, err := p.parseID(id)
	if err != nil {
		return nil, err
	}

	resp, err := p.query(ctx, anilistSourceQuery, mediaID)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, NewMissingFieldError("data")
	}
	media := resp.Data.Media
	if media == nil {
		return nil, NewSourceNotFoundError(id)
	}
	if media.Title == nil || media.Title.Romaji == nil {
		return nil, NewMissingFieldError("data.Media.title.romaji")
	}

	description := ""
	if media.Description != nil {
		description = *media.Description
	}
	coverURL := ""
	if media.CoverImage != nil && media.CoverImage.ExtraLarge != nil {
		coverURL = *media.CoverImage.ExtraLarge
	}

	return &Source{
		ID:          id,
		ItemsID:     id,
		Name:        *media.Title.Romaji,
		Description: description,
		SourceURL:   p.SourceURLFromID(id),
		CoverURL:    coverURL,
	}, nil
}

// FetchLatest は放映済みの最新エピソードをAiringScheduleクエリで取得する。
// エピソード番号はAPIのJSON値をそのまま文字列化して返す。
func (p *AniListPlatform) FetchLatest(ctx context.Context, itemsID string) (*Item, error) {
	mediaID, err := p.parseID(itemsID)
	if err != nil {
		return nil, err
	}

	resp, err := p.query(ctx, anilistLatestQuery, mediaID)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, NewMissingFieldError("data")
	}
	schedule := resp.Data.AiringSchedule
	if schedule == nil {
		return nil, NewItemNotFoundError(itemsID)
	}
	if schedule.AiringAt == nil {
		return nil, NewMissingFieldError("data.AiringSchedule.airingAt")
	}
	if len(schedule.Episode) == 0 {
		return nil, NewMissingFieldError("data.AiringSchedule.episode")
	}

	airingAt := *schedule.AiringAt
	if airingAt < 0 {
		return nil, NewInvalidTimestampError(airingAt)
	}

	return &Item{
		ID:        string(bytes.TrimSpace(schedule.ID)),
		Title:     string(bytes.TrimSpace(schedule.Episode)),
		Published: time.Unix(airingAt, 0).UTC(),
	}, nil
}

// IDFromSourceURL は https://anilist.co/anime/{id}/... 形式のURLからIDを抽出する。
func (p *AniListPlatform) IDFromSourceURL(rawURL string) (string, error) {
	id, err := p.NthPathSegment(rawURL, anilistDomain, 1)
	if err != nil {
		return "", err
	}
	if _, err := p.parseID(id); err != nil {
		return "", err
	}
	return id, nil
}

// SourceURLFromID はIDから公開URLを構築する。
func (p *AniListPlatform) SourceURLFromID(id string) string {
	return fmt.Sprintf("https://anilist.co/anime/%s", id)
}

// parseID はIDが32bit整数として妥当かを検証する。
func (p *AniListPlatform) parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		return 0, NewInvalidSourceIDError(id)
	}
	return n, nil
}

// extractAPIErrorMessage はAPIエラーオブジェクトからメッセージを抽出する。
// message、title、detailのいずれかの文字列フィールドを優先し、
// どれも無ければオブジェクト全体を文字列化して返す。
func extractAPIErrorMessage(raw json.RawMessage) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"message", "title", "detail"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return string(raw)
}
