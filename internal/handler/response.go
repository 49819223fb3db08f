// Package handler はボットシェル向けHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID          string `json:"id"`
	PlatformID  string `json:"platform_id"`
	SourceID    string `json:"source_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
	CoverURL    string `json:"cover_url"`
	Tags        string `json:"tags"`
}

// feedItemResponse はフィードアイテムのAPIレスポンス。
type feedItemResponse struct {
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
}

func toFeedResponse(feed *model.Feed) feedResponse {
	return feedResponse{
		ID:          feed.ID,
		PlatformID:  feed.PlatformID,
		SourceID:    feed.SourceID,
		Name:        feed.Name,
		Description: feed.Description,
		SourceURL:   feed.SourceURL,
		CoverURL:    feed.CoverURL,
		Tags:        feed.Tags,
	}
}

func toFeedItemResponse(item *model.FeedItem) *feedItemResponse {
	if item == nil {
		return nil
	}
	return &feedItemResponse{
		Title:     item.Description,
		Published: item.Published,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequest はリクエストボディの解析失敗時の統一レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeFeedNotFound, model.ErrCodeSubscriptionNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnsupportedURL, model.ErrCodeInvalidPage, model.ErrCodeInvalidEvent:
		return http.StatusBadRequest
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
