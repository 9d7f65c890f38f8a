// Package house は家庭の登録・編集・削除のドメインロジックを提供する。
package house

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/repository"
)

// Service は家庭管理のサービス層。
type Service struct {
	repo repository.HouseRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.HouseRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List は全件を返す。
func (s *Service) List(ctx context.Context) ([]*model.House, error) {
	houses, err := s.repo.List(ctx)
	if err != nil {
		return nil, &model.PersistenceError{Op: "家庭一覧の取得", Err: err}
	}
	return houses, nil
}

// Get は指定IDの家庭を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.House, error) {
	h, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, &model.PersistenceError{Op: "家庭の取得", Err: err}
	}
	if h == nil {
		return nil, model.NewHouseNotFoundError(id)
	}
	return h, nil
}

// Save はidが空なら新規作成し、そうでなければ更新する。
// 更新対象が存在しない場合は新規作成として扱う。
func (s *Service) Save(ctx context.Context, id string, f form.HouseForm) (*model.House, error) {
	if id != "" {
		h, err := s.repo.Update(ctx, id, model.HousePatch{Name: &f.Name})
		if err != nil {
			return nil, &model.PersistenceError{Op: "家庭の更新", Err: err}
		}
		if h != nil {
			return h, nil
		}
		slog.Info("更新対象の家庭が存在しないため新規作成します", slog.String("house_id", id))
	}

	now := s.now()
	h := &model.House{
		ID:        uuid.New().String(),
		Name:      f.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, &model.PersistenceError{Op: "家庭の作成", Err: err}
	}

	slog.Info("家庭を登録しました", slog.String("house_id", h.ID))
	return h, nil
}

// Delete は指定IDの家庭を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return &model.PersistenceError{Op: "家庭の削除", Err: err}
	}
	if !deleted {
		return model.NewHouseNotFoundError(id)
	}
	slog.Info("家庭を削除しました", slog.String("house_id", id))
	return nil
}
