package platform

import (
	"errors"
	"fmt"
)

// ErrorCode はプラットフォーム層のエラー種別を表す。
type ErrorCode string

// 定義済みエラーコード
const (
	CodeUnsupportedURL   ErrorCode = "UNSUPPORTED_URL"
	CodeInvalidSourceID  ErrorCode = "INVALID_SOURCE_ID"
	CodeInvalidFormat    ErrorCode = "INVALID_FORMAT"
	CodeMissingID        ErrorCode = "MISSING_ID"
	CodeSourceNotFound   ErrorCode = "SOURCE_NOT_FOUND"
	CodeItemNotFound     ErrorCode = "ITEM_NOT_FOUND"
	CodeEmptySource      ErrorCode = "EMPTY_SOURCE"
	CodeMissingField     ErrorCode = "MISSING_FIELD"
	CodeUnexpectedResult ErrorCode = "UNEXPECTED_RESULT"
	CodeInvalidTimestamp ErrorCode = "INVALID_TIMESTAMP"
	CodeInvalidTime      ErrorCode = "INVALID_TIME"
	CodeAPIError         ErrorCode = "API_ERROR"
	CodeTransportError   ErrorCode = "TRANSPORT_ERROR"
	CodeJSONParseError   ErrorCode = "JSON_PARSE_ERROR"
)

// Error はプラットフォーム層の型付きエラー。
// アダプタはすべての失敗をこの型で呼び出し元へ伝播する。
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップされた下位エラーを返す。
func (e *Error) Unwrap() error {
	return e.cause
}

// IsCode はerrが指定コードのプラットフォームエラーかどうかを返す。
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}

// NewUnsupportedURLError はレジストリがルーティングできないURLのエラーを生成する。
func NewUnsupportedURLError(url string) *Error {
	return &Error{
		Code:    CodeUnsupportedURL,
		Message: fmt.Sprintf("サポートされていないURLです: %s", url),
	}
}

// NewInvalidSourceIDError はプラットフォームのID形式に合わないIDのエラーを生成する。
func NewInvalidSourceIDError(id string) *Error {
	return &Error{
		Code:    CodeInvalidSourceID,
		Message: fmt.Sprintf("ソースIDの形式が不正です: %s", id),
	}
}

// NewInvalidFormatError はURL形式が不正な場合のエラーを生成する。
func NewInvalidFormatError(url string) *Error {
	return &Error{
		Code:    CodeInvalidFormat,
		Message: fmt.Sprintf("URLの形式が不正です: %s", url),
	}
}

// NewMissingIDError はURLからIDを抽出できない場合のエラーを生成する。
func NewMissingIDError(url string) *Error {
	return &Error{
		Code:    CodeMissingID,
		Message: fmt.Sprintf("URLにIDが含まれていません: %s", url),
	}
}

// NewSourceNotFoundError はソースが上流に存在しない場合のエラーを生成する。
func NewSourceNotFoundError(id string) *Error {
	return &Error{
		Code:    CodeSourceNotFound,
		Message: fmt.Sprintf("ソースが見つかりません: %s", id),
	}
}

// NewItemNotFoundError はソースは存在するがアイテムが無い場合のエラーを生成する。
func NewItemNotFoundError(id string) *Error {
	return &Error{
		Code:    CodeItemNotFound,
		Message: fmt.Sprintf("アイテムが見つかりません: %s", id),
	}
}

// NewEmptySourceError はアイテム一覧が空の場合のエラーを生成する。
func NewEmptySourceError(id string) *Error {
	return &Error{
		Code:    CodeEmptySource,
		Message: fmt.Sprintf("ソースにアイテムがありません: %s", id),
	}
}

// NewMissingFieldError は上流ペイロードに必須フィールドが無い場合のエラーを生成する。
func NewMissingFieldError(path string) *Error {
	return &Error{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("レスポンスに必須フィールドがありません: %s", path),
	}
}

// NewUnexpectedResultError は上流ペイロードの契約違反のエラーを生成する。
func NewUnexpectedResultError(msg string) *Error {
	return &Error{
		Code:    CodeUnexpectedResult,
		Message: msg,
	}
}

// NewInvalidTimestampError はUNIXタイムスタンプが不正な場合のエラーを生成する。
func NewInvalidTimestampError(ts int64) *Error {
	return &Error{
		Code:    CodeInvalidTimestamp,
		Message: fmt.Sprintf("タイムスタンプが不正です: %d", ts),
	}
}

// NewInvalidTimeError は日時文字列のパースに失敗した場合のエラーを生成する。
func NewInvalidTimeError(value string) *Error {
	return &Error{
		Code:    CodeInvalidTime,
		Message: fmt.Sprintf("日時の形式が不正です: %s", value),
	}
}

// NewAPIError は上流APIが報告したエラーを生成する。
func NewAPIError(message string) *Error {
	return &Error{
		Code:    CodeAPIError,
		Message: message,
	}
}

// NewTransportError はHTTP I/Oの失敗をラップしたエラーを生成する。
func NewTransportError(err error) *Error {
	return &Error{
		Code:    CodeTransportError,
		Message: fmt.Sprintf("リクエストの送信に失敗しました: %v", err),
		cause:   err,
	}
}

// NewJSONParseError はレスポンスボディのJSONパース失敗をラップしたエラーを生成する。
func NewJSONParseError(err error) *Error {
	return &Error{
		Code:    CodeJSONParseError,
		Message: fmt.Sprintf("レスポンスのパースに失敗しました: %v", err),
		cause:   err,
	}
}
