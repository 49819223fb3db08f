package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// VoiceServiceInterface はボイスハンドラーが必要とするサービスインターフェース。
type VoiceServiceInterface interface {
	// HandleEvent はボイス状態イベントを処理する。
	HandleEvent(ctx context.Context, event *model.VoiceEvent) error
	// Leaderboard はギルド内の合計滞在時間を集計する。
	Leaderboard(ctx context.Context, opts model.LeaderboardOptions) ([]model.LeaderboardEntry, error)
}

// VoiceHandler はボイストラッキングのHTTPハンドラー。
type VoiceHandler struct {
	service VoiceServiceInterface
}

// NewVoiceHandler はVoiceHandlerを生成する。
func NewVoiceHandler(service VoiceServiceInterface) *VoiceHandler {
	return &VoiceHandler{service: service}
}

// HandleEvent はボイス状態イベントを受け付ける。
// POST /api/voice/events
func (h *VoiceHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event model.VoiceEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.HandleEvent(r.Context(), &event); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// leaderboardResponse はリーダーボードのAPIレスポンス。
type leaderboardResponse struct {
	GuildID int64                    `json:"guild_id"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

// Leaderboard はギルドの滞在時間ランキングを返す。
// GET /api/voice/leaderboard?guild_id=1&since=...&until=...&offset=0&limit=10
func (h *VoiceHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	guildID, err := strconv.ParseInt(q.Get("guild_id"), 10, 64)
	if err != nil || guildID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "guild_idが不正です。",
			Category: "validation",
			Action:   "guild_idには正の整数を指定してください。",
		})
		return
	}

	opts := model.LeaderboardOptions{GuildID: guildID, Limit: 10}

	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidEventError("sinceの形式が不正です"))
			return
		}
		opts.Since = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidEventError("untilの形式が不正です"))
			return
		}
		opts.Until = &ts
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			opts.Offset = offset
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}

	entries, err := h.service.Leaderboard(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{
		GuildID: guildID,
		Entries: entries,
	})
}
