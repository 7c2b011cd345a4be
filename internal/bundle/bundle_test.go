package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestNewInventoriesTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html></html>")
	writeFile(t, root, "css/style.css", "body{}")
	writeFile(t, root, "js/main.js", "let x = 1;")

	b, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(b.Files) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(b.Files), b.Files)
	}
	want := int64(len("<html></html>") + len("body{}") + len("let x = 1;"))
	if b.TotalBytes != want {
		t.Fatalf("TotalBytes = %d, want %d", b.TotalBytes, want)
	}
	if b.EntryDoc != "index.html" {
		t.Fatalf("EntryDoc = %q, want index.html", b.EntryDoc)
	}
}

func TestEntryDocPrefersRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dist/index.html", "")
	writeFile(t, root, "index.html", "")

	b, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.EntryDoc != "index.html" {
		t.Fatalf("EntryDoc = %q, want index.html", b.EntryDoc)
	}
}

func TestEntryDocOneLevelDown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dist/index.html", "")
	writeFile(t, root, "dist/assets/app.js", "")

	b, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.EntryDoc != "dist/index.html" {
		t.Fatalf("EntryDoc = %q, want dist/index.html", b.EntryDoc)
	}
}

func TestEntryDocMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.html", "")

	b, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.EntryDoc != "" {
		t.Fatalf("EntryDoc = %q, want empty", b.EntryDoc)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "")

	b, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Remove(); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("tree still present after Remove")
	}
	if err := b.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{512, "0.50KB"},
		{1024, "1.00KB"},
		{1 << 20, "1.00MB"},
		{3 << 20, "3.00MB"},
		{(1 << 20) + (1 << 19), "1.50MB"},
	}
	for _, c := range cases {
		if got := HumanSize(c.n); got != c.want {
			t.Errorf("HumanSize(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestResolveIconPriority(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "logo.png", "png")
	writeFile(t, root, "favicon.ico", "ico")

	if got := ResolveIcon(root); got != "favicon.ico" {
		t.Fatalf("ResolveIcon = %q, want favicon.ico", got)
	}
}

func TestResolveIconNested(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dist/icon.png", "png")
	writeFile(t, root, "index.html", "")

	if got := ResolveIcon(root); got != "dist/icon.png" {
		t.Fatalf("ResolveIcon = %q, want dist/icon.png", got)
	}
}

func TestResolveIconRootBeatsNested(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dist/favicon.ico", "ico")
	writeFile(t, root, "logo.png", "png")

	if got := ResolveIcon(root); got != "logo.png" {
		t.Fatalf("ResolveIcon = %q, want logo.png", got)
	}
}

func TestResolveIconAbsent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "")

	if got := ResolveIcon(root); got != "" {
		t.Fatalf("ResolveIcon = %q, want empty", got)
	}
}
