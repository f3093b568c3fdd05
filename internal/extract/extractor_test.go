package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlainTextSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "doc.txt", "This agreement is entered into by the parties.")

	got, err := PlainTextSource{}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if got != "This agreement is entered into by the parties." {
		t.Errorf("Extract() = %q", got)
	}

	if _, err := (PlainTextSource{}).Extract(context.Background(), "/missing.txt"); err == nil {
		t.Error("Extract() on missing file = nil error")
	}
}

func TestHTMLSourceStripsChrome(t *testing.T) {
	html := `<html><head>
<style>body { color: red }</style>
<script>alert("hi")</script>
</head><body>
<nav>Home | About</nav>
<header>Site header</header>
<p>This   agreement
is    binding.</p>
<footer>copyright</footer>
</body></html>`

	path := writeFile(t, t.TempDir(), "doc.html", html)

	got, err := HTMLSource{}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if got != "This agreement is binding." {
		t.Errorf("Extract() = %q", got)
	}
	for _, banned := range []string{"alert", "color: red", "Home | About", "Site header", "copyright"} {
		if strings.Contains(got, banned) {
			t.Errorf("extracted text contains %q", banned)
		}
	}
}

func TestRegistryDispatch(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "a.txt", "plain text")
	html := writeFile(t, dir, "b.HTML", "<p>from html</p>")

	reg := NewRegistry()

	got, err := reg.Extract(context.Background(), txt)
	if err != nil {
		t.Fatalf("Extract(txt) error: %v", err)
	}
	if got != "plain text" {
		t.Errorf("Extract(txt) = %q", got)
	}

	// Extension matching is case-insensitive.
	got, err = reg.Extract(context.Background(), html)
	if err != nil {
		t.Fatalf("Extract(HTML) error: %v", err)
	}
	if got != "from html" {
		t.Errorf("Extract(HTML) = %q", got)
	}

	if _, err := reg.Extract(context.Background(), filepath.Join(dir, "c.docx")); err == nil {
		t.Error("Extract(unregistered extension) = nil error")
	}
}

type staticSource struct{ text string }

func (s staticSource) Extract(context.Context, string) (string, error) { return s.text, nil }

func TestRegistryRegisterCustomSource(t *testing.T) {
	reg := NewRegistry()
	reg.Register(".pdf", staticSource{text: "pdf body"})

	got, err := reg.Extract(context.Background(), "/jobs/x/contract.pdf")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if got != "pdf body" {
		t.Errorf("Extract() = %q", got)
	}
}
