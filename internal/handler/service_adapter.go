package handler

import (
	"context"

	"github.com/hitoshi/babynest/internal/baby"
	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/house"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/profile"
	"github.com/hitoshi/babynest/internal/storage"
)

// EntityRecorder は永続化操作の計測先。
type EntityRecorder interface {
	RecordEntityOperation(entity, op string)
}

// 計測用の操作名
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// saveOp は保存前のIDと保存結果から作成・更新を判別する。
func saveOp(id, savedID string) string {
	if id == "" || id != savedID {
		return opCreate
	}
	return opUpdate
}

// BabyServiceAdapter は baby.Service を BabyServiceInterface に適合させ、操作を計測するアダプタ。
type BabyServiceAdapter struct {
	svc     *baby.Service
	metrics EntityRecorder
}

// NewBabyServiceAdapter はBabyServiceAdapterを生成する。
func NewBabyServiceAdapter(svc *baby.Service, m EntityRecorder) *BabyServiceAdapter {
	return &BabyServiceAdapter{svc: svc, metrics: m}
}

// List は赤ちゃん一覧を返す。
func (a *BabyServiceAdapter) List(ctx context.Context) ([]*model.Baby, error) {
	return a.svc.List(ctx)
}

// Get は赤ちゃん1件を返す。
func (a *BabyServiceAdapter) Get(ctx context.Context, id string) (*model.Baby, error) {
	return a.svc.Get(ctx, id)
}

// Save は赤ちゃんを保存し、作成・更新を記録する。
func (a *BabyServiceAdapter) Save(ctx context.Context, id string, f form.BabyForm, image *storage.Image) (*model.Baby, error) {
	b, err := a.svc.Save(ctx, id, f, image)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordEntityOperation("baby", saveOp(id, b.ID))
	return b, nil
}

// Delete は赤ちゃんを削除し、記録する。
func (a *BabyServiceAdapter) Delete(ctx context.Context, id string) error {
	if err := a.svc.Delete(ctx, id); err != nil {
		return err
	}
	a.metrics.RecordEntityOperation("baby", opDelete)
	return nil
}

// HouseServiceAdapter は house.Service を HouseServiceInterface に適合させ、操作を計測するアダプタ。
type HouseServiceAdapter struct {
	svc     *house.Service
	metrics EntityRecorder
}

// NewHouseServiceAdapter はHouseServiceAdapterを生成する。
func NewHouseServiceAdapter(svc *house.Service, m EntityRecorder) *HouseServiceAdapter {
	return &HouseServiceAdapter{svc: svc, metrics: m}
}

// List は家庭一覧を返す。
func (a *HouseServiceAdapter) List(ctx context.Context) ([]*model.House, error) {
	return a.svc.List(ctx)
}

// Get は家庭1件を返す。
func (a *HouseServiceAdapter) Get(ctx context.Context, id string) (*model.House, error) {
	return a.svc.Get(ctx, id)
}

// Save は家庭を保存し、作成・更新を記録する。
func (a *HouseServiceAdapter) Save(ctx context.Context, id string, f form.HouseForm) (*model.House, error) {
	h, err := a.svc.Save(ctx, id, f)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordEntityOperation("house", saveOp(id, h.ID))
	return h, nil
}

// Delete は家庭を削除し、記録する。
func (a *HouseServiceAdapter) Delete(ctx context.Context, id string) error {
	if err := a.svc.Delete(ctx, id); err != nil {
		return err
	}
	a.metrics.RecordEntityOperation("house", opDelete)
	return nil
}

// ProfileServiceAdapter は profile.Service を ProfileServiceInterface に適合させるアダプタ。
type ProfileServiceAdapter struct {
	svc     *profile.Service
	metrics EntityRecorder
}

// NewProfileServiceAdapter はProfileServiceAdapterを生成する。
func NewProfileServiceAdapter(svc *profile.Service, m EntityRecorder) *ProfileServiceAdapter {
	return &ProfileServiceAdapter{svc: svc, metrics: m}
}

// Get はユーザーのプロフィールを返す。
func (a *ProfileServiceAdapter) Get(ctx context.Context, userID string) (*model.User, error) {
	return a.svc.Get(ctx, userID)
}

// Update はプロフィールを更新し、記録する。
func (a *ProfileServiceAdapter) Update(ctx context.Context, userID string, f form.ProfileForm, image *storage.Image) (*model.User, error) {
	u, err := a.svc.Update(ctx, userID, f, image)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordEntityOperation("user", opUpdate)
	return u, nil
}

// Withdraw はユーザーの退会処理を実行し、記録する。
func (a *ProfileServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	if err := a.svc.Withdraw(ctx, userID); err != nil {
		return err
	}
	a.metrics.RecordEntityOperation("user", opDelete)
	return nil
}

// --- compile-time interface checks ---

var _ BabyServiceInterface = (*BabyServiceAdapter)(nil)
var _ HouseServiceInterface = (*HouseServiceAdapter)(nil)
var _ ProfileServiceInterface = (*ProfileServiceAdapter)(nil)
