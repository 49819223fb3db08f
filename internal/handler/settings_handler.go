package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/shinkan/internal/model"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	// Get はギルド設定を取得する。未設定の場合はデフォルト値を返す。
	Get(ctx context.Context, guildID int64) (*model.ServerSettings, error)
	// UpdateFeeds はフィード通知設定を更新する。
	UpdateFeeds(ctx context.Context, guildID int64, update model.FeedsSettings) (*model.ServerSettings, error)
	// UpdateVoice はボイストラッキング設定を更新する。
	UpdateVoice(ctx context.Context, guildID int64, update model.VoiceSettings) (*model.ServerSettings, error)
}

// SettingsHandler はギルド設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// parseGuildID はパスパラメータからギルドIDを解析する。
func parseGuildID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	guildID, err := strconv.ParseInt(chi.URLParam(r, "guildID"), 10, 64)
	if err != nil || guildID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "guild_idが不正です。",
			Category: "validation",
			Action:   "guild_idには正の整数を指定してください。",
		})
		return 0, false
	}
	return guildID, true
}

// Get はギルド設定を取得する。
// GET /api/settings/{guildID}
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	guildID, ok := parseGuildID(w, r)
	if !ok {
		return
	}

	settings, err := h.service.Get(r.Context(), guildID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateFeeds はフィード通知設定を更新する。nilのフィールドは変更しない。
// PATCH /api/settings/{guildID}/feeds
func (h *SettingsHandler) UpdateFeeds(w http.ResponseWriter, r *http.Request) {
	guildID, ok := parseGuildID(w, r)
	if !ok {
		return
	}

	var update model.FeedsSettings
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeInvalidRequest(w)
		return
	}

	settings, err := h.service.UpdateFeeds(r.Context(), guildID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateVoice はボイストラッキング設定を更新する。
// PATCH /api/settings/{guildID}/voice
func (h *SettingsHandler) UpdateVoice(w http.ResponseWriter, r *http.Request) {
	guildID, ok := parseGuildID(w, r)
	if !ok {
		return
	}

	var update model.VoiceSettings
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeInvalidRequest(w)
		return
	}

	settings, err := h.service.UpdateVoice(r.Context(), guildID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}
