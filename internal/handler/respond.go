// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

// defaultMaxImageSize はアップロード画像サイズ上限の既定値。
const defaultMaxImageSize int64 = 5 << 20

// FormMetrics はフォーム検証失敗の計測先。
type FormMetrics interface {
	RecordValidationFailure(form string)
}

// recordInvalid はerrが検証エラーであればフォーム名で記録する。
func recordInvalid(m FormMetrics, name string, err error) {
	if m != nil && model.IsValidationError(err) {
		m.RecordValidationFailure(name)
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// requireUserID はセッションミドルウェアが注入したユーザーIDを返す。
// 取得できなければ401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "Authentication required.",
			Category: "auth",
			Action:   "Sign in and try again.",
		})
		return "", false
	}
	return userID, true
}

// decodeSubmission はリクエストボディをフォーム送信1回分に変換する。
// JSONはフィールド名をキーとするオブジェクト、それ以外はフォームエンコード
// (multipartを含む)として読む。画像はImage種別のフィールドからのみ受け付ける。
func decodeSubmission(r *http.Request, fields []form.Field, maxImage int64) (form.Submission, error) {
	if maxImage <= 0 {
		maxImage = defaultMaxImageSize
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return form.Submission{}, &model.ValidationError{Fields: map[string]string{"body": "Request body is not valid JSON"}}
		}
		return form.Submission{Values: pick(fields, func(name string) (string, bool) {
			v, ok := body[name]
			return v, ok
		})}, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImage + (1 << 20)); err != nil {
			return form.Submission{}, &model.ValidationError{Fields: map[string]string{"body": "Form data is not valid"}}
		}
	} else if err := r.ParseForm(); err != nil {
		return form.Submission{}, &model.ValidationError{Fields: map[string]string{"body": "Form data is not valid"}}
	}

	sub := form.Submission{Values: pick(fields, func(name string) (string, bool) {
		vs, ok := r.PostForm[name]
		if !ok || len(vs) == 0 {
			return "", false
		}
		return vs[0], true
	})}

	for _, f := range fields {
		if _, ok := f.Kind.(form.Image); !ok || r.MultipartForm == nil {
			continue
		}
		file, header, err := r.FormFile(f.Name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return sub, &model.ValidationError{Fields: map[string]string{f.Name: "Image is not valid"}}
		}
		img, err := storage.ReadImage(header.Filename, file, maxImage)
		file.Close()
		if err != nil {
			return sub, &model.ValidationError{Fields: map[string]string{f.Name: "Image is not valid"}}
		}
		sub.Image = img
	}
	return sub, nil
}

// pick はfieldsに含まれる名前の値だけを取り出す。Image種別は値として扱わない。
func pick(fields []form.Field, lookup func(name string) (string, bool)) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, ok := f.Kind.(form.Image); ok {
			continue
		}
		if v, ok := lookup(f.Name); ok {
			out[f.Name] = v
		}
	}
	return out
}
