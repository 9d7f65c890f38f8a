// Package i18n はロケール解決とメッセージカタログを提供する。
// 対応ロケールはen, es, frで、メッセージはmessages/*.jsonを埋め込んで読み込む。
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Resolver は利用者の言語設定を対応ロケールに解決する。
type Resolver struct {
	codes    []string
	matcher  language.Matcher
	fallback string
}

// NewResolver はResolverを生成する。fallbackはsupportedに含まれている必要がある。
func NewResolver(supported []string, fallback string) (*Resolver, error) {
	if len(supported) == 0 {
		return nil, fmt.Errorf("no supported locales")
	}

	// 先頭がマッチャーの既定値になるためfallbackを最初に置く
	codes := []string{fallback}
	found := false
	for _, code := range supported {
		if code == fallback {
			found = true
			continue
		}
		codes = append(codes, code)
	}
	if !found {
		return nil, fmt.Errorf("fallback locale %q is not supported", fallback)
	}

	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", code, err)
		}
		tags = append(tags, tag)
	}

	return &Resolver{
		codes:    codes,
		matcher:  language.NewMatcher(tags),
		fallback: fallback,
	}, nil
}

// Fallback は既定ロケールを返す。
func (r *Resolver) Fallback() string { return r.fallback }

// Locales は対応ロケールを返す。先頭は既定ロケール。
func (r *Resolver) Locales() []string {
	return append([]string(nil), r.codes...)
}

// Supported はcodeが対応ロケールかどうかを返す。
func (r *Resolver) Supported(code string) bool {
	for _, c := range r.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Resolve は希望順の言語タグ列を対応ロケールに解決する。
// 地域サブタグは無視し、基本言語だけで照合する。一致しなければ既定ロケールを返す。
func (r *Resolver) Resolve(preferred []string) string {
	tags := make([]language.Tag, 0, len(preferred))
	for _, p := range preferred {
		tag, err := language.Parse(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		tags = append(tags, language.Make(base.String()))
	}
	if len(tags) == 0 {
		return r.fallback
	}

	_, index, confidence := r.matcher.Match(tags...)
	if confidence == language.No {
		return r.fallback
	}
	return r.codes[index]
}

// ResolveHeader はAccept-Languageヘッダーを対応ロケールに解決する。
func (r *Resolver) ResolveHeader(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return r.fallback
	}
	preferred := make([]string, 0, len(tags))
	for _, t := range tags {
		preferred = append(preferred, t.String())
	}
	return r.Resolve(preferred)
}

// Messages はロケール1つ分の "namespace.key" 形式のメッセージ表。
type Messages map[string]string

// T はkeyのメッセージを返す。未定義のキーはキー自体を返し、警告ログを出す。
func (m Messages) T(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	slog.Warn("missing message", slog.String("key", key))
	return key
}

// Catalog は全ロケールのメッセージ表を保持する。
type Catalog struct {
	messages map[string]Messages
	fallback string
}

// LoadCatalog は埋め込みJSONから対応ロケールのメッセージを読み込む。
func LoadCatalog(locales []string, fallback string) (*Catalog, error) {
	c := &Catalog{messages: make(map[string]Messages, len(locales)), fallback: fallback}
	for _, locale := range locales {
		raw, err := messagesFS.ReadFile("messages/" + locale + ".json")
		if err != nil {
			return nil, fmt.Errorf("messages for locale %q not found: %w", locale, err)
		}
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse messages for locale %q: %w", locale, err)
		}
		msgs := Messages{}
		flatten("", tree, msgs)
		c.messages[locale] = msgs
	}
	if _, ok := c.messages[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q has no messages", fallback)
	}
	return c, nil
}

// LoadMessages はlocaleのメッセージ表を返す。未対応なら既定ロケールの表を返す。
func (c *Catalog) LoadMessages(locale string) Messages {
	if m, ok := c.messages[locale]; ok {
		return m
	}
	return c.messages[c.fallback]
}

func flatten(prefix string, node map[string]any, out Messages) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
