// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/babynest/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// Update はpatchの非nilフィールドのみを更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は認証プロバイダ紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// BabyRepository は赤ちゃんデータの永続化インターフェース。
type BabyRepository interface {
	// List は全件を作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Baby, error)
	// FindByID は指定IDの赤ちゃんを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Baby, error)
	// Create は赤ちゃんを作成する。IDとタイムスタンプは呼び出し側で設定する。
	Create(ctx context.Context, baby *model.Baby) error
	// Update はpatchの非nilフィールドのみを更新し、更新後の値を返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.BabyPatch) (*model.Baby, error)
	// Delete は指定IDの赤ちゃんを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// HouseRepository は家庭データの永続化インターフェース。
type HouseRepository interface {
	// List は全件を作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.House, error)
	// FindByID は指定IDの家庭を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.House, error)
	// Create は家庭を作成する。
	Create(ctx context.Context, house *model.House) error
	// Update はpatchの非nilフィールドのみを更新し、更新後の値を返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.HousePatch) (*model.House, error)
	// Delete は指定IDの家庭を削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}
