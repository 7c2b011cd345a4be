package pathutil

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestHasDotSegments(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"index.html", false},
		{"assets/css/site.css", false},
		{"..", true},
		{".", true},
		{"../etc/passwd", true},
		{"assets/../secret", true},
		{"assets/./site.css", true},
		{"a/b/..", true},
		{"..hidden", false},
		{"dir.name/file", false},
	}
	for _, tc := range cases {
		if got := HasDotSegments(tc.in); got != tc.want {
			t.Errorf("HasDotSegments(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCleanRelative(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"index.html", "index.html", true},
		{"./index.html", "index.html", true},
		{"assets//css/site.css", "assets/css/site.css", true},
		{`assets\img\logo.png`, "assets/img/logo.png", true},
		{"/etc/passwd", "", false},
		{"../outside", "", false},
		{"a/../../outside", "", false},
		{"C:/windows/system32", "", false},
		{"", "", false},
		{".", "", false},
		{"a/b/../c", "a/c", true},
	}
	for _, tc := range cases {
		got, ok := CleanRelative(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CleanRelative(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestWithinRoot(t *testing.T) {
	root := filepath.Join("tmp", "extract")

	got, ok := WithinRoot(root, "site/index.html")
	if !ok {
		t.Fatal("expected in-root join to succeed")
	}
	if !strings.HasPrefix(got, filepath.Clean(root)) {
		t.Fatalf("joined path %q not under root %q", got, root)
	}

	if _, ok := WithinRoot(root, "../escape"); ok {
		t.Fatal("expected upward join to be rejected")
	}
	if _, ok := WithinRoot(root, "a/../../../escape"); ok {
		t.Fatal("expected nested upward join to be rejected")
	}
}

func FuzzCleanRelative(f *testing.F) {
	f.Add("index.html")
	f.Add("../escape")
	f.Add(`a\b\c`)
	f.Fuzz(func(t *testing.T, name string) {
		rel, ok := CleanRelative(name)
		if !ok {
			return
		}
		if HasDotSegments(rel) {
			t.Fatalf("CleanRelative(%q) returned dotted path %q", name, rel)
		}
		if _, ok := WithinRoot("root", rel); !ok {
			t.Fatalf("CleanRelative(%q) produced %q which escapes root", name, rel)
		}
	})
}
