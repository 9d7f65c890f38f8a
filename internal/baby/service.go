// Package baby は赤ちゃんの登録・編集・削除のドメインロジックを提供する。
package baby

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/repository"
	"github.com/hitoshi/babynest/internal/storage"
)

// Service は赤ちゃん管理のサービス層。
type Service struct {
	repo   repository.BabyRepository
	images storage.ImageStore
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.BabyRepository, images storage.ImageStore) *Service {
	return &Service{repo: repo, images: images, now: time.Now}
}

// List は全件を返す。
func (s *Service) List(ctx context.Context) ([]*model.Baby, error) {
	babies, err := s.repo.List(ctx)
	if err != nil {
		return nil, &model.PersistenceError{Op: "赤ちゃん一覧の取得", Err: err}
	}
	return babies, nil
}

// Get は指定IDの赤ちゃんを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Baby, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, &model.PersistenceError{Op: "赤ちゃんの取得", Err: err}
	}
	if b == nil {
		return nil, model.NewBabyNotFoundError(id)
	}
	return b, nil
}

// Save はidが空なら新規作成し、そうでなければ更新する。
// 更新対象が存在しない場合は新規作成として扱う。画像があれば先にアップロードする。
func (s *Service) Save(ctx context.Context, id string, f form.BabyForm, image *storage.Image) (*model.Baby, error) {
	birth, err := time.Parse(time.DateOnly, f.BirthDate)
	if err != nil {
		return nil, &model.ValidationError{Fields: map[string]string{"birthDate": "Birth date is not valid"}}
	}

	if id != "" {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, &model.PersistenceError{Op: "赤ちゃんの取得", Err: err}
		}
		if existing != nil {
			return s.update(ctx, id, f, birth, image)
		}
		slog.Info("更新対象の赤ちゃんが存在しないため新規作成します", slog.String("baby_id", id))
	}
	return s.create(ctx, f, birth, image)
}

func (s *Service) create(ctx context.Context, f form.BabyForm, birth time.Time, image *storage.Image) (*model.Baby, error) {
	now := s.now()
	b := &model.Baby{
		ID:        uuid.New().String(),
		Name:      f.Name,
		Gender:    model.Gender(f.Gender),
		Color:     f.Color,
		PhotoURL:  f.PhotoURL,
		BirthDate: birth,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if image != nil {
		url, err := s.upload(ctx, b.ID, image)
		if err != nil {
			return nil, err
		}
		b.PhotoURL = url
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, &model.PersistenceError{Op: "赤ちゃんの作成", Err: err}
	}

	slog.Info("赤ちゃんを登録しました", slog.String("baby_id", b.ID))
	return b, nil
}

func (s *Service) update(ctx context.Context, id string, f form.BabyForm, birth time.Time, image *storage.Image) (*model.Baby, error) {
	gender := model.Gender(f.Gender)
	patch := model.BabyPatch{
		Name:      &f.Name,
		Gender:    &gender,
		Color:     &f.Color,
		BirthDate: &birth,
	}

	if image != nil {
		url, err := s.upload(ctx, id, image)
		if err != nil {
			return nil, err
		}
		patch.PhotoURL = &url
	}

	b, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, &model.PersistenceError{Op: "赤ちゃんの更新", Err: err}
	}
	if b == nil {
		return nil, model.NewBabyNotFoundError(id)
	}
	return b, nil
}

func (s *Service) upload(ctx context.Context, id string, image *storage.Image) (string, error) {
	url, err := s.images.Upload(ctx, storage.ObjectPath(storage.BabyImagePrefix, id, image.Filename), image)
	if err != nil {
		slog.Warn("赤ちゃんの画像アップロードに失敗しました",
			slog.String("baby_id", id),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %w", model.NewUploadFailedError(), err)
	}
	return url, nil
}

// Delete は指定IDの赤ちゃんを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return &model.PersistenceError{Op: "赤ちゃんの削除", Err: err}
	}
	if !deleted {
		return model.NewBabyNotFoundError(id)
	}
	slog.Info("赤ちゃんを削除しました", slog.String("baby_id", id))
	return nil
}
