package webassets

import (
	"io/fs"
	"strings"
	"testing"
)

func TestPlaceholderFSHasAllCategories(t *testing.T) {
	fsys := PlaceholderFS()
	for _, cat := range []string{"game", "tool", "tutorial", "productivity", "general"} {
		info, err := fs.Stat(fsys, cat+".svg")
		if err != nil {
			t.Errorf("%s.svg missing: %v", cat, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s.svg is empty", cat)
		}
	}
}

func TestPlaceholderPath(t *testing.T) {
	if got := PlaceholderPath("game"); got != "/placeholders/game.svg" {
		t.Errorf("game: %q", got)
	}
	if got := PlaceholderPath("nonsense"); got != "/placeholders/general.svg" {
		t.Errorf("unknown category should fall back: %q", got)
	}
	if got := PlaceholderPath(""); got != "/placeholders/general.svg" {
		t.Errorf("empty category should fall back: %q", got)
	}
}

func TestPlaceholdersAreSVG(t *testing.T) {
	fsys := PlaceholderFS()
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if !strings.Contains(string(data), "<svg") {
			t.Errorf("%s does not look like an SVG", e.Name())
		}
	}
}
