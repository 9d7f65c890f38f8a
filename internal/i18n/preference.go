package i18n

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Preference は利用者の言語設定。保存形式によって文字列または
// {"language": "es"} 形式のオブジェクトのどちらかで届くため、境界で一度だけ判別する。
type Preference interface {
	isPreference()
}

// StringPreference は言語コードを直接表す設定。
type StringPreference string

// ObjectPreference はlanguageフィールドを持つオブジェクト形式の設定。
type ObjectPreference struct {
	Lang string `json:"language"`
}

func (StringPreference) isPreference() {}
func (ObjectPreference) isPreference() {}

// ParsePreference はJSON値を言語設定に変換する。nullや空はnilを返す。
func ParsePreference(raw json.RawMessage) (Preference, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("invalid language preference: %w", err)
		}
		return StringPreference(s), nil
	case '{':
		var o ObjectPreference
		if err := json.Unmarshal(trimmed, &o); err != nil {
			return nil, fmt.Errorf("invalid language preference: %w", err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("language preference must be a string or an object")
	}
}

// PreferenceLocale は設定から言語コードを取り出す。未設定や空ならfallbackを返す。
func PreferenceLocale(p Preference, fallback string) string {
	var code string
	switch v := p.(type) {
	case StringPreference:
		code = string(v)
	case ObjectPreference:
		code = v.Lang
	case nil:
	}
	if code == "" {
		return fallback
	}
	return code
}
