// Package storage manages the published content tree: bundle directories
// under apps/, uploaded media under videos/ images/ thumbs/, plus the
// orphan sweep and an optional S3 mirror of published bundles.
package storage

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/pathutil"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// Subtrees of the content root.
const (
	AppsDir   = "apps"
	VideosDir = "videos"
	ImagesDir = "images"
	ThumbsDir = "thumbs"
)

// Store is the local published tree rooted at a fixed directory. All
// public paths handed out are slash-separated and relative to the root.
type Store struct {
	root       string
	logger     log.Logger
	sweepGrace time.Duration
}

type Options struct {
	// Root is the content root directory; created if absent.
	Root   string
	Logger log.Logger

	// SweepGrace keeps the orphan sweep away from entries modified
	// within the window, so an extraction still in flight is not
	// mistaken for an orphan. Zero disables the guard.
	SweepGrace time.Duration
}

// New creates the root and its fixed subtrees.
func New(opts Options) (*Store, error) {
	if opts.Root == "" {
		return nil, xerrors.New("content root is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	for _, sub := range []string{AppsDir, VideosDir, ImagesDir, ThumbsDir} {
		if err := os.MkdirAll(filepath.Join(opts.Root, sub), 0o755); err != nil {
			return nil, xerrors.Wrapf(err, "create content subtree %s", sub)
		}
	}
	return &Store{root: opts.Root, logger: opts.Logger, sweepGrace: opts.SweepGrace}, nil
}

// Root returns the absolute content root for the static file server.
func (s *Store) Root() string { return s.root }

// NewAppDir reserves a collision-free bundle directory and returns its
// name and absolute path. The directory is not created; the adapter
// extracting into it does that.
func (s *Store) NewAppDir() (name, abs string) {
	name = uuid.NewString()
	return name, filepath.Join(s.root, AppsDir, name)
}

// PublishedURL joins a bundle directory name and entry document into the
// relative URL stored on the item row.
func PublishedURL(dirName, entryDoc string) string {
	return path.Join(AppsDir, dirName, entryDoc)
}

// SaveFile streams r into <root>/<subdir>/<filename> and returns the
// relative path plus byte count. filename must be a clean single
// component.
func (s *Store) SaveFile(subdir, filename string, r io.Reader) (string, int64, error) {
	cleaned, ok := pathutil.CleanRelative(filename)
	if !ok || strings.Contains(cleaned, "/") {
		return "", 0, xerrors.Ef(xerrors.KindInput, "invalid file name %q", filename)
	}
	abs := filepath.Join(s.root, subdir, cleaned)

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, xerrors.WithKind(xerrors.Wrapf(err, "create %s", cleaned), xerrors.KindStorage)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(abs)
		return "", 0, xerrors.WithKind(xerrors.Wrapf(err, "write %s", cleaned), xerrors.KindStorage)
	}
	return path.Join(subdir, cleaned), n, nil
}

// RemoveTree deletes the file or directory tree behind a stored relative
// path. Paths for bundle URLs include the entry document; the owning
// directory under apps/ is what gets removed.
func (s *Store) RemoveTree(rel string) error {
	target := rel
	if strings.HasPrefix(rel, AppsDir+"/") {
		parts := strings.SplitN(rel, "/", 3)
		if len(parts) >= 2 {
			target = path.Join(parts[0], parts[1])
		}
	}
	abs, ok := pathutil.WithinRoot(s.root, target)
	if !ok {
		return xerrors.Newf("path %q escapes content root", rel)
	}
	return os.RemoveAll(abs)
}

// WriteProbe reports whether the root is writable; wired into readiness.
func (s *Store) WriteProbe() error {
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
