package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/shinkan/internal/subscription"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// GetFeed はフィードの詳細を最新アイテムと購読者数付きで返す。
	GetFeed(ctx context.Context, feedID string) (*subscription.FeedDetail, error)
}

// FeedHandler はフィード参照のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

// feedDetailResponse はフィード詳細のAPIレスポンス。
type feedDetailResponse struct {
	feedResponse
	Latest          *feedItemResponse `json:"latest,omitempty"`
	SubscriberCount int               `json:"subscriber_count"`
}

// GetFeed はフィード詳細を取得する。
// GET /api/feeds/{id}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	detail, err := h.service.GetFeed(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedDetailResponse{
		feedResponse:    toFeedResponse(&detail.Feed),
		Latest:          toFeedItemResponse(detail.Latest),
		SubscriberCount: detail.SubscriberCount,
	})
}
