// Package form はフォーム送信のデコード、検証、確定処理をまとめたパイプラインを提供する。
package form

// Field はフォームの入力項目1つを表す。Nameは検証スキーマのformタグと一致させる。
type Field struct {
	Name     string
	Label    string // メッセージキー（例: "baby.name"）
	Kind     Kind
	Required bool
	Messages map[string]string // 検証タグ → 表示メッセージ
}

// Option はSelectの選択肢。
type Option struct {
	Value string
	Label string
}

// Kind は入力項目の種類。実装はこのパッケージ内の型に限られる。
type Kind interface {
	Accept(f Field, v Visitor)
	sealed()
}

// Visitor は入力項目の種類ごとの処理を定義する。
// 種類を追加するとすべてのVisitor実装がコンパイルエラーになる。
type Visitor interface {
	VisitText(f Field, k Text)
	VisitEmail(f Field, k Email)
	VisitSelect(f Field, k Select)
	VisitColor(f Field, k Color)
	VisitDate(f Field, k Date)
	VisitImage(f Field, k Image)
}

// Text は1行テキスト。Secretはパスワード入力。
type Text struct {
	Secret bool
}

// Email はメールアドレス。
type Email struct{}

// Select は選択肢からの1つ選択。
type Select struct {
	Options []Option
}

// Color は #rrggbb 形式の色。
type Color struct{}

// Date は YYYY-MM-DD 形式の日付。
type Date struct{}

// Image は画像ファイル。値には現在の画像URLを保持する。
type Image struct {
	MIME string
}

func (k Text) Accept(f Field, v Visitor)   { v.VisitText(f, k) }
func (k Email) Accept(f Field, v Visitor)  { v.VisitEmail(f, k) }
func (k Select) Accept(f Field, v Visitor) { v.VisitSelect(f, k) }
func (k Color) Accept(f Field, v Visitor)  { v.VisitColor(f, k) }
func (k Date) Accept(f Field, v Visitor)   { v.VisitDate(f, k) }
func (k Image) Accept(f Field, v Visitor)  { v.VisitImage(f, k) }

func (Text) sealed()   {}
func (Email) sealed()  {}
func (Select) sealed() {}
func (Color) sealed()  {}
func (Date) sealed()   {}
func (Image) sealed()  {}
