// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, persistence, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド別のバリデーションメッセージ（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeEmailInUse        = "EMAIL_IN_USE"
	ErrCodePersistence       = "PERSISTENCE_FAILED"
	ErrCodeUploadFailed      = "UPLOAD_FAILED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeBabyNotFound      = "BABY_NOT_FOUND"
	ErrCodeHouseNotFound     = "HOUSE_NOT_FOUND"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeUnsupportedLocale = "UNSUPPORTED_LOCALE"
)

// ValidationError はフォーム送信時のフィールド別エラーを表す。
// フィールドごとに最初の失敗メッセージのみを保持する。
type ValidationError struct {
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AuthError は認証プロバイダの失敗を包む。Messageはそのまま画面に表示する。
type AuthError struct {
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Message, e.Err)
	}
	return "auth: " + e.Message
}

// Unwrap は元のエラーを返す。
func (e *AuthError) Unwrap() error { return e.Err }

// PersistenceError は永続化層の失敗を表す。
// 利用者には汎用の「完了できませんでした」メッセージのみを見せる。
type PersistenceError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *PersistenceError) Unwrap() error { return e.Err }

// PersistenceMessage はPersistenceErrorの表示用メッセージ。
const PersistenceMessage = "Could not complete the operation. Please try again."

// UserMessage はerrを画面に表示する1つの文字列に変換する。
// 内部の詳細は利用者に見せない。
func UserMessage(err error) string {
	var apiErr *APIError
	var authErr *AuthError
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &validationErr):
		return "Some fields are invalid."
	default:
		return PersistenceMessage
	}
}

// NewValidationAPIError はバリデーションエラーを生成する。
func NewValidationAPIError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Some fields are invalid.",
		Category: "validation",
		Action:   "Fix the highlighted fields and submit again.",
		Fields:   fields,
	}
}

// NewAuthFailedError は認証失敗エラーを生成する。
func NewAuthFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your credentials and sign in again.",
	}
}

// NewEmailInUseError は登録済みメールアドレスでのアカウント作成エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "An account with this email already exists.",
		Category: "auth",
		Action:   "Sign in instead, or use a different email address.",
	}
}

// NewPersistenceAPIError は永続化失敗エラーを生成する。
func NewPersistenceAPIError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  PersistenceMessage,
		Category: "persistence",
		Action:   "Wait a moment and submit again.",
	}
}

// NewUploadFailedError は画像アップロード失敗エラーを生成する。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  "The image could not be uploaded.",
		Category: "persistence",
		Action:   "Choose a smaller image or try again later.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewBabyNotFoundError は赤ちゃんが見つからない場合のエラーを生成する。
func NewBabyNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeBabyNotFound,
		Message:  fmt.Sprintf("Baby not found: %s", id),
		Category: "validation",
		Action:   "Reload the list and try again.",
	}
}

// NewHouseNotFoundError は家庭が見つからない場合のエラーを生成する。
func NewHouseNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeHouseNotFound,
		Message:  fmt.Sprintf("House not found: %s", id),
		Category: "validation",
		Action:   "Reload the list and try again.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Use an http:// or https:// URL.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "Access to the requested URL was blocked by the security policy.",
		Category: "validation",
		Action:   "Use a publicly reachable image URL.",
	}
}

// NewUnsupportedLocaleError は未対応ロケールエラーを生成する。
func NewUnsupportedLocaleError(locale string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedLocale,
		Message:  fmt.Sprintf("Unsupported language: %s", locale),
		Category: "validation",
		Action:   "Choose one of the listed languages.",
	}
}

// IsValidationError はerrが入力値の検証エラーかどうかを返す。
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case ErrCodeValidation, ErrCodeUnsupportedLocale, ErrCodeInvalidURL:
		return true
	default:
		return false
	}
}
