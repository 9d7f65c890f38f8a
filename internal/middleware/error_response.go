package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/babynest/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Fields:   apiErr.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Something went wrong.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	})
}

// writeUnauthorized は未認証の統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "Sign in to continue.",
		Category: "auth",
		Action:   "Sign in and try again.",
	})
}

// WriteError はエラー分類に応じたステータスコードで統一レスポンスを書き込む。
// 分類できないエラーは500として扱い、詳細はログにのみ残す。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	var validationErr *model.ValidationError
	var authErr *model.AuthError
	var persistenceErr *model.PersistenceError

	switch {
	case errors.As(err, &apiErr):
		WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
	case errors.As(err, &validationErr):
		WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationAPIError(validationErr.Fields))
	case errors.As(err, &authErr):
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthFailedError(authErr.Message))
	case errors.As(err, &persistenceErr):
		slog.Error("persistence failed", slog.String("error", err.Error()))
		WriteErrorResponse(w, http.StatusInternalServerError, model.NewPersistenceAPIError())
	default:
		slog.Error("unexpected error", slog.String("error", err.Error()))
		WriteInternalServerError(w)
	}
}

// statusForAPIError はAPIErrorのコードからHTTPステータスを決める。
func statusForAPIError(e *model.APIError) int {
	switch e.Code {
	case model.ErrCodeAuthFailed, model.ErrCodeUserNotFound:
		return http.StatusUnauthorized
	case model.ErrCodeBabyNotFound, model.ErrCodeHouseNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailInUse:
		return http.StatusConflict
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodePersistence, model.ErrCodeUploadFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// StatusForError はWriteErrorと同じ分類でHTTPステータスを返す。
// HTML画面で再描画するときに使う。
func StatusForError(err error) int {
	var apiErr *model.APIError
	var validationErr *model.ValidationError
	var authErr *model.AuthError

	switch {
	case errors.As(err, &apiErr):
		return statusForAPIError(apiErr)
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
