// Package profile はログイン中ユーザー自身のプロフィール管理を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/repository"
	"github.com/hitoshi/babynest/internal/storage"
)

// LocaleChecker は言語コードが対応ロケールかを判定する。
type LocaleChecker interface {
	Supported(code string) bool
}

// Service はプロフィール管理のサービス層。
// 取得・更新・退会のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	images      storage.ImageStore
	locales     LocaleChecker
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	images storage.ImageStore,
	locales LocaleChecker,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		images:      images,
		locales:     locales,
	}
}

// Get は指定ユーザーを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "ユーザーの取得", Err: err}
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Update はプロフィールを更新し、更新後のユーザーを返す。
// 呼び出し側は戻り値でセッションの内容を上書きし、localeクッキーを言語設定に合わせる。
func (s *Service) Update(ctx context.Context, userID string, f form.ProfileForm, image *storage.Image) (*model.User, error) {
	if s.locales != nil && !s.locales.Supported(f.Language) {
		return nil, &model.ValidationError{Fields: map[string]string{"language": "Language is not supported"}}
	}

	other, err := s.userRepo.FindByEmail(ctx, f.Email)
	if err != nil {
		return nil, &model.PersistenceError{Op: "メールアドレスの確認", Err: err}
	}
	if other != nil && other.ID != userID {
		return nil, &model.ValidationError{Fields: map[string]string{"email": "Email is already in use"}}
	}

	patch := model.UserPatch{
		Name:     &f.Name,
		Email:    &f.Email,
		Language: &f.Language,
	}

	if image != nil {
		objectPath := storage.ObjectPath(storage.ProfileImagePrefix, userID, image.Filename)
		url, err := s.images.Upload(ctx, objectPath, image)
		if err != nil {
			slog.Warn("プロフィール画像のアップロードに失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %w", model.NewUploadFailedError(), err)
		}
		patch.PhotoURL = &url
	}

	user, err := s.userRepo.Update(ctx, userID, patch)
	if err != nil {
		return nil, &model.PersistenceError{Op: "プロフィールの更新", Err: err}
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("プロフィールを更新しました", slog.String("user_id", userID))
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（identitiesはCASCADE削除）
// 赤ちゃんと家庭は共有データとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
