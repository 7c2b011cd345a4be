package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SweepReport lists what an orphan sweep removed.
type SweepReport struct {
	RemovedDirs  []string `json:"removed_dirs"`
	RemovedFiles []string `json:"removed_files"`
}

// Sweep removes UUID-named bundle directories under apps/ that no item
// references, and files under images/ that no image row references.
// Anything not UUID-shaped is left alone so the sweep can never eat a
// directory it does not own.
func (s *Store) Sweep(ctx context.Context, referencedDirs, referencedFiles map[string]bool) (*SweepReport, error) {
	report := &SweepReport{}

	entries, err := os.ReadDir(filepath.Join(s.root, AppsDir))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !e.IsDir() || !uuidShaped(e.Name()) || referencedDirs[e.Name()] {
			continue
		}
		if s.withinGrace(e) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, AppsDir, e.Name())); err != nil {
			s.logger.Warn(ctx, "orphan sweep failed to remove dir", "dir", e.Name(), "error", err)
			continue
		}
		report.RemovedDirs = append(report.RemovedDirs, e.Name())
	}

	files, err := os.ReadDir(filepath.Join(s.root, ImagesDir))
	if err != nil {
		return nil, err
	}
	for _, e := range files {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if e.IsDir() {
			continue
		}
		rel := path.Join(ImagesDir, e.Name())
		base := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		if !uuidShaped(base) || referencedFiles[rel] {
			continue
		}
		if s.withinGrace(e) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, ImagesDir, e.Name())); err != nil {
			s.logger.Warn(ctx, "orphan sweep failed to remove file", "file", rel, "error", err)
			continue
		}
		report.RemovedFiles = append(report.RemovedFiles, rel)
	}

	s.logger.Info(ctx, "orphan sweep complete",
		"removed_dirs", len(report.RemovedDirs),
		"removed_files", len(report.RemovedFiles),
	)
	return report, nil
}

// withinGrace reports whether the entry was modified inside the sweep
// grace window. An extraction in flight has no row yet; its directory
// is unreferenced but must not be swept.
func (s *Store) withinGrace(e os.DirEntry) bool {
	if s.sweepGrace <= 0 {
		return false
	}
	info, err := e.Info()
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) < s.sweepGrace
}

// DirNameFromURL extracts the bundle directory component of a published
// URL ("apps/<name>/index.html" -> "<name>"); "" when the URL is not a
// bundle path.
func DirNameFromURL(publishedURL string) string {
	parts := strings.SplitN(publishedURL, "/", 3)
	if len(parts) < 2 || parts[0] != AppsDir {
		return ""
	}
	return parts[1]
}

func uuidShaped(name string) bool {
	_, err := uuid.Parse(name)
	return err == nil && len(name) == 36
}
