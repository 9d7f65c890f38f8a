package i18n

import (
	"sort"
	"testing"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver([]string{"en", "es", "fr"}, "en")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestNewResolver_FallbackNotSupported_ReturnsError(t *testing.T) {
	if _, err := NewResolver([]string{"es", "fr"}, "en"); err == nil {
		t.Fatal("expected error for unsupported fallback")
	}
	if _, err := NewResolver(nil, "en"); err == nil {
		t.Fatal("expected error for empty locales")
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name      string
		preferred []string
		want      string
	}{
		{"完全一致", []string{"es"}, "es"},
		{"地域付きは基本言語で照合", []string{"fr-CA"}, "fr"},
		{"最初の対応言語を優先", []string{"de", "fr", "es"}, "fr"},
		{"未対応のみは既定", []string{"de", "ja"}, "en"},
		{"空は既定", nil, "en"},
		{"不正なタグは無視", []string{"!!", "es-MX"}, "es"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.preferred); got != tt.want {
				t.Errorf("Resolve(%v) = %q, want %q", tt.preferred, got, tt.want)
			}
		})
	}
}

func TestResolver_ResolveHeader(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		header string
		want   string
	}{
		{"es-ES,es;q=0.9,en;q=0.8", "es"},
		{"fr-FR;q=0.8, de;q=0.9", "fr"},
		{"ja", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		if got := r.ResolveHeader(tt.header); got != tt.want {
			t.Errorf("ResolveHeader(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestResolver_Supported(t *testing.T) {
	r := newTestResolver(t)

	if !r.Supported("fr") {
		t.Error("fr should be supported")
	}
	if r.Supported("de") {
		t.Error("de should not be supported")
	}
	if got := r.Locales(); got[0] != "en" || len(got) != 3 {
		t.Errorf("Locales() = %v", got)
	}
}

func TestLoadCatalog_AllLocalesShareKeys(t *testing.T) {
	c, err := LoadCatalog([]string{"en", "es", "fr"}, "en")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	keys := func(m Messages) []string {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}

	want := keys(c.LoadMessages("en"))
	if len(want) == 0 {
		t.Fatal("en catalog is empty")
	}
	for _, locale := range []string{"es", "fr"} {
		got := keys(c.LoadMessages(locale))
		if len(got) != len(want) {
			t.Fatalf("%s has %d keys, en has %d", locale, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s key mismatch: %q vs %q", locale, got[i], want[i])
			}
		}
	}
}

func TestCatalog_LoadMessages_FallsBackToDefault(t *testing.T) {
	c, err := LoadCatalog([]string{"en", "es"}, "en")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	if got := c.LoadMessages("de").T("auth.login"); got != c.LoadMessages("en").T("auth.login") {
		t.Errorf("unsupported locale should fall back to en, got %q", got)
	}
	if got := c.LoadMessages("es").T("no.such.key"); got != "no.such.key" {
		t.Errorf("missing key should return the key, got %q", got)
	}
}

func TestLoadCatalog_UnknownLocale_ReturnsError(t *testing.T) {
	if _, err := LoadCatalog([]string{"en", "de"}, "en"); err == nil {
		t.Fatal("expected error for locale without messages")
	}
}

func TestParsePreference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"文字列", `"es"`, "es"},
		{"オブジェクト", `{"language":"fr"}`, "fr"},
		{"null", `null`, "en"},
		{"空", ``, "en"},
		{"空文字列", `""`, "en"},
		{"languageなしのオブジェクト", `{}`, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePreference([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParsePreference: %v", err)
			}
			if got := PreferenceLocale(p, "en"); got != tt.want {
				t.Errorf("PreferenceLocale = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePreference_InvalidShape_ReturnsError(t *testing.T) {
	for _, raw := range []string{`42`, `["es"]`, `true`} {
		if _, err := ParsePreference([]byte(raw)); err == nil {
			t.Errorf("ParsePreference(%s) expected error", raw)
		}
	}
}
