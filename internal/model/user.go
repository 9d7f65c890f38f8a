// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Languageはロケールcookieと同期されるUI言語。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Admin     bool      `json:"admin"`
	PhotoURL  string    `json:"photoUrl"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserPatch はユーザーの部分更新内容を表す。nilのフィールドは変更しない。
type UserPatch struct {
	Name     *string
	Email    *string
	PhotoURL *string
	Language *string
}

// 認証プロバイダ
const (
	ProviderGoogle   = "google"
	ProviderPassword = "password"
)

// Identity は認証プロバイダとの紐付け情報を表す。
// providerがpasswordの場合、ProviderUserIDはメールアドレス、SecretHashはbcryptハッシュ。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	SecretHash     string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
