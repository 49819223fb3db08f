package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/subscription"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// Subscribe はURLからフィードを解決して購読を登録する。
	Subscribe(ctx context.Context, rawURL string, subType model.SubscriberType, targetID string) (*subscription.SubscribeResult, error)
	// Unsubscribe は購読を解除する。
	Unsubscribe(ctx context.Context, feedID string, subType model.SubscriberType, targetID string) error
	// UnsubscribeByURL はソースURLで購読を解除する。
	UnsubscribeByURL(ctx context.Context, rawURL string, subType model.SubscriberType, targetID string) error
	// ListPage は購読フィード一覧をページ単位で返す。
	ListPage(ctx context.Context, subType model.SubscriberType, targetID string, page int) (*subscription.FeedPage, error)
	// Search は購読フィードを名前で検索する。
	Search(ctx context.Context, subType model.SubscriberType, targetID, query string) ([]model.FeedWithLatest, error)
}

// SubscriptionHandler は購読管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// subscribeRequest は購読登録リクエストのボディ。
type subscribeRequest struct {
	SourceURL      string `json:"source_url"`
	SubscriberType string `json:"subscriber_type"`
	TargetID       string `json:"target_id"`
}

// subscribeResponse は購読登録のAPIレスポンス。
type subscribeResponse struct {
	Feed              feedResponse `json:"feed"`
	AlreadySubscribed bool         `json:"already_subscribed"`
}

// feedWithLatestResponse はフィードと最新アイテムのAPIレスポンス。
type feedWithLatestResponse struct {
	feedResponse
	Latest *feedItemResponse `json:"latest,omitempty"`
}

// feedPageResponse は購読一覧ページのAPIレスポンス。
type feedPageResponse struct {
	Feeds      []feedWithLatestResponse `json:"feeds"`
	Page       int                      `json:"page"`
	TotalCount int                      `json:"total_count"`
}

func toFeedWithLatestResponses(feeds []model.FeedWithLatest) []feedWithLatestResponse {
	out := make([]feedWithLatestResponse, 0, len(feeds))
	for i := range feeds {
		out = append(out, feedWithLatestResponse{
			feedResponse: toFeedResponse(&feeds[i].Feed),
			Latest:       toFeedItemResponse(feeds[i].Latest),
		})
	}
	return out
}

// parseSubscriberType は購読者種別の文字列を検証して変換する。
func parseSubscriberType(s string) (model.SubscriberType, bool) {
	switch model.SubscriberType(s) {
	case model.SubscriberTypeGuild:
		return model.SubscriberTypeGuild, true
	case model.SubscriberTypeDirect:
		return model.SubscriberTypeDirect, true
	}
	return "", false
}

// invalidSubscriberTypeError は不正な購読者種別のエラーレスポンスを書き込む。
func invalidSubscriberTypeError(w http.ResponseWriter, value string) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_SUBSCRIBER_TYPE",
		Message:  "不正な購読者種別です: " + value,
		Category: "validation",
		Action:   "subscriber_typeにはguildまたはdirectを指定してください。",
	})
}

// Subscribe は購読登録を処理する。既存の購読がある場合も成功として扱う（冪等）。
// POST /api/subscriptions
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if req.SourceURL == "" || req.TargetID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "source_urlとtarget_idは必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	subType, ok := parseSubscriberType(req.SubscriberType)
	if !ok {
		invalidSubscriberTypeError(w, req.SubscriberType)
		return
	}

	result, err := h.service.Subscribe(r.Context(), req.SourceURL, subType, req.TargetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statusCode := http.StatusCreated
	if result.AlreadySubscribed {
		statusCode = http.StatusOK
	}
	writeJSON(w, statusCode, subscribeResponse{
		Feed:              toFeedResponse(result.Feed),
		AlreadySubscribed: result.AlreadySubscribed,
	})
}

// Unsubscribe は購読解除を処理する。
// DELETE /api/subscriptions/{feedID}?subscriber_type=guild&target_id=123
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "feedID")
	targetID := r.URL.Query().Get("target_id")

	subType, ok := parseSubscriberType(r.URL.Query().Get("subscriber_type"))
	if !ok {
		invalidSubscriberTypeError(w, r.URL.Query().Get("subscriber_type"))
		return
	}

	if err := h.service.Unsubscribe(r.Context(), feedID, subType, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnsubscribeByURL はソースURL指定の購読解除を処理する。
// DELETE /api/subscriptions?source_url=...&subscriber_type=guild&target_id=123
func (h *SubscriptionHandler) UnsubscribeByURL(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("source_url")
	targetID := r.URL.Query().Get("target_id")

	if sourceURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "source_urlは必須です。",
			Category: "validation",
			Action:   "source_urlクエリパラメータを指定してください。",
		})
		return
	}

	subType, ok := parseSubscriberType(r.URL.Query().Get("subscriber_type"))
	if !ok {
		invalidSubscriberTypeError(w, r.URL.Query().Get("subscriber_type"))
		return
	}

	if err := h.service.UnsubscribeByURL(r.Context(), sourceURL, subType, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List は購読フィード一覧を返す。ページ番号は1始まり。
// GET /api/subscriptions?subscriber_type=guild&target_id=123&page=1
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	targetID := r.URL.Query().Get("target_id")

	subType, ok := parseSubscriberType(r.URL.Query().Get("subscriber_type"))
	if !ok {
		invalidSubscriberTypeError(w, r.URL.Query().Get("subscriber_type"))
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPageError(0))
			return
		}
		page = parsed
	}

	result, err := h.service.ListPage(r.Context(), subType, targetID, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedPageResponse{
		Feeds:      toFeedWithLatestResponses(result.Feeds),
		Page:       result.Page,
		TotalCount: result.TotalCount,
	})
}

// Search は購読フィードを名前の部分一致で検索する。
// GET /api/subscriptions/search?subscriber_type=guild&target_id=123&query=kaguya
func (h *SubscriptionHandler) Search(w http.ResponseWriter, r *http.Request) {
	targetID := r.URL.Query().Get("target_id")
	query := r.URL.Query().Get("query")

	subType, ok := parseSubscriberType(r.URL.Query().Get("subscriber_type"))
	if !ok {
		invalidSubscriberTypeError(w, r.URL.Query().Get("subscriber_type"))
		return
	}

	feeds, err := h.service.Search(r.Context(), subType, targetID, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"feeds": toFeedWithLatestResponses(feeds),
	})
}
