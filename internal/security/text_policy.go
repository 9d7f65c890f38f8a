package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// PlainTextPolicy は利用者入力（名前など）にHTMLが混入していないかを判定する。
// 入力を書き換えず、マークアップを含む入力は拒否する方針で使う。
type PlainTextPolicy struct {
	policy *bluemonday.Policy
}

// NewPlainTextPolicy はタグを一切許可しないbluemondayポリシーで判定器を生成する。
func NewPlainTextPolicy() *PlainTextPolicy {
	return &PlainTextPolicy{policy: bluemonday.StrictPolicy()}
}

// IsPlainText はsがタグやエンティティ参照を含まない場合にtrueを返す。
// サニタイズ結果をアンエスケープして元の文字列と一致するかで判定する。
func (p *PlainTextPolicy) IsPlainText(s string) bool {
	if s == "" {
		return true
	}
	return html.UnescapeString(p.policy.Sanitize(s)) == s
}
