package model

import "time"

// House は家庭（世帯）を表す。
type House struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetID はリスト表示での同一性判定に使うIDを返す。
func (h *House) GetID() string { return h.ID }

// HousePatch は家庭の部分更新内容を表す。
type HousePatch struct {
	Name *string
}

// HouseRole は家庭メンバーの役割。
type HouseRole string

const (
	HouseRoleOwner       HouseRole = "owner"
	HouseRoleParent      HouseRole = "parent"
	HouseRoleGrandparent HouseRole = "grandparent"
	HouseRoleCaretaker   HouseRole = "caretaker"
	HouseRoleGuest       HouseRole = "guest"
)

// HouseBaby は家庭と赤ちゃんの多対多の関連を表す。
// スキーマ上は定義しているが、現時点でこの関連を読み書きするコンポーネントはない。
type HouseBaby struct {
	HouseID string
	BabyID  string
}

// HousePerson は家庭とユーザーの関連（役割付き）を表す。
// HouseBabyと同様、読み書きするコンポーネントはない。
type HousePerson struct {
	HouseID string
	UserID  string
	Role    HouseRole
}
