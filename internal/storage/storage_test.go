package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Root: t.TempDir(), Logger: log.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewCreatesSubtrees(t *testing.T) {
	s := newTestStore(t)
	for _, sub := range []string{AppsDir, VideosDir, ImagesDir, ThumbsDir} {
		fi, err := os.Stat(filepath.Join(s.Root(), sub))
		if err != nil || !fi.IsDir() {
			t.Fatalf("subtree %s missing: %v", sub, err)
		}
	}
}

func TestSaveFile(t *testing.T) {
	s := newTestStore(t)

	rel, n, err := s.SaveFile(VideosDir, "clip.mp4", strings.NewReader("frames"))
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if rel != "videos/clip.mp4" || n != int64(len("frames")) {
		t.Fatalf("rel=%q n=%d", rel, n)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "videos", "clip.mp4")); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
}

func TestSaveFileRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"../escape.mp4", "a/b.mp4", "/abs.mp4"} {
		_, _, err := s.SaveFile(VideosDir, name, strings.NewReader("x"))
		if !xerrors.IsKind(err, xerrors.KindInput) {
			t.Errorf("SaveFile(%q): %v", name, err)
		}
	}
}

func TestRemoveTreeStripsToBundleDir(t *testing.T) {
	s := newTestStore(t)
	name, abs := s.NewAppDir()
	if err := os.MkdirAll(filepath.Join(abs, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(abs, "index.html"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.RemoveTree(PublishedURL(name, "index.html")); err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Fatal("bundle dir still present")
	}
}

func TestRemoveTreeRejectsEscape(t *testing.T) {
	s := newTestStore(t)
	if err := s.RemoveTree("../outside"); err == nil {
		t.Fatal("expected error for escaping path")
	}
}

func TestSweepRemovesOnlyUnreferencedUUIDDirs(t *testing.T) {
	s := newTestStore(t)

	kept, keptAbs := s.NewAppDir()
	orphanName, orphanAbs := s.NewAppDir()
	for _, dir := range []string{keptAbs, orphanAbs, filepath.Join(s.Root(), AppsDir, "not-a-uuid")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	orphanImg := uuid.NewString() + ".png"
	for _, f := range []string{orphanImg, "manual.png"} {
		if err := os.WriteFile(filepath.Join(s.Root(), ImagesDir, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	report, err := s.Sweep(context.Background(),
		map[string]bool{kept: true},
		map[string]bool{},
	)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(report.RemovedDirs) != 1 || report.RemovedDirs[0] != orphanName {
		t.Fatalf("RemovedDirs = %v", report.RemovedDirs)
	}
	if len(report.RemovedFiles) != 1 || report.RemovedFiles[0] != "images/"+orphanImg {
		t.Fatalf("RemovedFiles = %v", report.RemovedFiles)
	}
	if _, err := os.Stat(keptAbs); err != nil {
		t.Fatal("referenced dir removed")
	}
	if _, err := os.Stat(filepath.Join(s.Root(), AppsDir, "not-a-uuid")); err != nil {
		t.Fatal("non-uuid dir removed")
	}
	if _, err := os.Stat(filepath.Join(s.Root(), ImagesDir, "manual.png")); err != nil {
		t.Fatal("non-uuid image removed")
	}
}

func TestSweepGraceKeepsRecentEntries(t *testing.T) {
	s, err := New(Options{Root: t.TempDir(), Logger: log.Nop(), SweepGrace: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	freshName, freshAbs := s.NewAppDir()
	staleName, staleAbs := s.NewAppDir()
	for _, dir := range []string{freshAbs, staleAbs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(staleAbs, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	report, err := s.Sweep(context.Background(), map[string]bool{}, map[string]bool{})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.RemovedDirs) != 1 || report.RemovedDirs[0] != staleName {
		t.Fatalf("RemovedDirs = %v", report.RemovedDirs)
	}
	if _, err := os.Stat(freshAbs); err != nil {
		t.Fatalf("in-flight dir %s swept: %v", freshName, err)
	}
}

func TestDirNameFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"apps/abc-123/index.html", "abc-123"},
		{"apps/abc-123", "abc-123"},
		{"videos/clip.mp4", ""},
		{"https://example.com", ""},
	}
	for _, c := range cases {
		if got := DirNameFromURL(c.url); got != c.want {
			t.Errorf("DirNameFromURL(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestWriteProbe(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteProbe(); err != nil {
		t.Fatalf("WriteProbe: %v", err)
	}
}
