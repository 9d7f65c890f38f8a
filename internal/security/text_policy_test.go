package security

import "testing"

func TestPlainTextPolicy_IsPlainText(t *testing.T) {
	p := NewPlainTextPolicy()

	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"Lucía", true},
		{"Tom & Jerry", true},
		{"O'Brien \"Junior\"", true},
		{"I <3 naps", true},
		{"Casa de la abuela 🏠", true},
		{"<b>Lucía</b>", false},
		{"<script>alert(1)</script>", false},
		{`<img src=x onerror=alert(1)>`, false},
		{"&lt;b&gt;", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := p.IsPlainText(tt.input); got != tt.want {
				t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
