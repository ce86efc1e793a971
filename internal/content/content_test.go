package content

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("# Title\n\nSome **bold** text.")
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.Contains(html, "<h1") {
		t.Errorf("missing heading in %q", html)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("missing bold in %q", html)
	}
}

func TestRenderMarkdown_StripsScripts(t *testing.T) {
	html, err := RenderMarkdown("Hello <script>alert('xss')</script> world\n\n<img src=x onerror=alert(1)>")
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if strings.Contains(html, "<script") {
		t.Errorf("script tag survived: %q", html)
	}
	if strings.Contains(html, "onerror") {
		t.Errorf("event handler survived: %q", html)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain comment", "plain comment"},
		{"<b>bold</b> words", "bold words"},
		{"  padded  ", "padded"},
		{"<script>alert(1)</script>", ""},
	}
	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
