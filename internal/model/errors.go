package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, voice, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFeedNotFound         = "FEED_NOT_FOUND"
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeUnsupportedURL       = "UNSUPPORTED_URL"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeInvalidPage          = "INVALID_PAGE"
	ErrCodeInvalidEvent         = "INVALID_EVENT"
)

// NewFeedNotFoundError はフィードが見つからない場合のエラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewSubscriptionNotFoundError は購読が見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("このフィードは購読していません: %s", feedID),
		Category: "feed",
		Action:   "購読一覧を確認してください。",
	}
}

// NewUnsupportedURLError は対応していないURLのエラーを生成する。
func NewUnsupportedURLError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedURL,
		Message:  fmt.Sprintf("対応していないURLです: %s", url),
		Category: "validation",
		Action:   "AniList、MangaDex、ComickのURLか、RSS/AtomフィードのURLを入力してください。",
	}
}

// NewFetchFailedError は上流からの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("ソースの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInvalidPageError は無効なページ番号のエラーを生成する。
func NewInvalidPageError(page int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %d", page),
		Category: "validation",
		Action:   "ページ番号には1以上の整数を指定してください。",
	}
}

// NewInvalidEventError は不正なボイスイベントのエラーを生成する。
func NewInvalidEventError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEvent,
		Message:  fmt.Sprintf("不正なイベントです: %s", reason),
		Category: "validation",
		Action:   "イベントの種別と必須フィールドを確認してください。",
	}
}
