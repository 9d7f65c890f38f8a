package form

import "github.com/hitoshi/babynest/internal/model"

// BabyForm は赤ちゃんの登録・編集フォームの検証スキーマ。
type BabyForm struct {
	Name      string `form:"name" validate:"required,min=2,plaintext"`
	Gender    string `form:"gender" validate:"required,oneof=female male"`
	Color     string `form:"color" validate:"required,hexcolor"`
	BirthDate string `form:"birthDate" validate:"required,datetime=2006-01-02"`
	PhotoURL  string `form:"photoUrl"`
}

// HouseForm は家庭の登録・編集フォームの検証スキーマ。
type HouseForm struct {
	Name string `form:"name" validate:"required,min=2,plaintext"`
}

// ProfileForm はプロフィール編集フォームの検証スキーマ。
type ProfileForm struct {
	Name     string `form:"name" validate:"required,min=2,plaintext"`
	Email    string `form:"email" validate:"required,email"`
	Language string `form:"language" validate:"required,bcp47_language_tag"`
	PhotoURL string `form:"photoUrl"`
}

// LoginForm はメールアドレスとパスワードでのログインフォームの検証スキーマ。
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=6"`
}

// RegisterForm はアカウント作成フォームの検証スキーマ。
type RegisterForm struct {
	Name     string `form:"name" validate:"required,min=2,plaintext"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=6"`
}

var nameMessages = map[string]string{
	"required":  "Name is required",
	"min":       "Name is too short",
	"plaintext": "Name must not contain markup",
}

var loginEmailMessages = map[string]string{
	"*": "Please enter a valid email address",
}

var passwordMessages = map[string]string{
	"*": "Password must be at least 6 characters",
}

// BabyFields は赤ちゃんフォームの入力項目。
func BabyFields() []Field {
	return []Field{
		{Name: "name", Label: "baby.name", Kind: Text{}, Required: true, Messages: nameMessages},
		{Name: "gender", Label: "baby.gender", Kind: Select{Options: []Option{
			{Value: string(model.GenderFemale), Label: "baby.female"},
			{Value: string(model.GenderMale), Label: "baby.male"},
		}}, Required: true, Messages: map[string]string{
			"required": "Gender is required",
			"oneof":    "Gender is required",
		}},
		{Name: "color", Label: "baby.color", Kind: Color{}, Required: true, Messages: map[string]string{
			"required": "Color is required",
			"hexcolor": "Color is not valid",
		}},
		{Name: "birthDate", Label: "baby.birthDate", Kind: Date{}, Required: true, Messages: map[string]string{
			"required": "Birth date is required",
			"datetime": "Birth date is not valid",
		}},
		{Name: "photoUrl", Label: "baby.photo", Kind: Image{MIME: "image/*"}},
	}
}

// HouseFields は家庭フォームの入力項目。
func HouseFields() []Field {
	return []Field{
		{Name: "name", Label: "house.name", Kind: Text{}, Required: true, Messages: nameMessages},
	}
}

// ProfileFields はプロフィールフォームの入力項目。localesは言語の選択肢。
func ProfileFields(locales []string) []Field {
	options := make([]Option, 0, len(locales))
	for _, l := range locales {
		options = append(options, Option{Value: l, Label: "profile.languages." + l})
	}
	return []Field{
		{Name: "name", Label: "profile.name", Kind: Text{}, Required: true, Messages: nameMessages},
		{Name: "email", Label: "profile.email", Kind: Email{}, Required: true, Messages: map[string]string{
			"required": "Email is required",
			"email":    "Email is not valid",
		}},
		{Name: "language", Label: "profile.language", Kind: Select{Options: options}, Required: true, Messages: map[string]string{
			"required": "Language is required",
			"*":        "Language is not supported",
		}},
		{Name: "photoUrl", Label: "profile.photo", Kind: Image{MIME: "image/*"}},
	}
}

// LoginFields はログインフォームの入力項目。
func LoginFields() []Field {
	return []Field{
		{Name: "email", Label: "auth.email", Kind: Email{}, Required: true, Messages: loginEmailMessages},
		{Name: "password", Label: "auth.password", Kind: Text{Secret: true}, Required: true, Messages: passwordMessages},
	}
}

// RegisterFields はアカウント作成フォームの入力項目。
func RegisterFields() []Field {
	return []Field{
		{Name: "name", Label: "auth.name", Kind: Text{}, Required: true, Messages: nameMessages},
		{Name: "email", Label: "auth.email", Kind: Email{}, Required: true, Messages: loginEmailMessages},
		{Name: "password", Label: "auth.password", Kind: Text{Secret: true}, Required: true, Messages: passwordMessages},
	}
}

// BabyDefaults は新規登録時の既定値を返す。
func BabyDefaults() BabyForm {
	return BabyForm{Gender: string(model.GenderFemale), Color: model.DefaultBabyColor}
}

// BabyFormFrom は既存の赤ちゃんから編集用の値を作る。
func BabyFormFrom(b *model.Baby) BabyForm {
	return BabyForm{
		Name:      b.Name,
		Gender:    string(b.Gender),
		Color:     b.Color,
		BirthDate: b.BirthDate.Format("2006-01-02"),
		PhotoURL:  b.PhotoURL,
	}
}

// HouseFormFrom は既存の家庭から編集用の値を作る。
func HouseFormFrom(h *model.House) HouseForm {
	return HouseForm{Name: h.Name}
}

// ProfileFormFrom はユーザーから編集用の値を作る。
func ProfileFormFrom(u *model.User) ProfileForm {
	return ProfileForm{
		Name:     u.Name,
		Email:    u.Email,
		Language: u.Language,
		PhotoURL: u.PhotoURL,
	}
}
