package ingest

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/appgrove/appgrove-server/internal/bundle"
	"github.com/appgrove/appgrove-server/internal/pathutil"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// maxTotalExtract guards against decompression bombs independently of
// the moderation size caps; the gate owns the user-facing limit.
const maxTotalExtract int64 = 100 << 20

// ExtractArchive unpacks a zip payload into destDir and inventories the
// result. Every entry name is normalized and refused if it would land
// outside destDir. On any error the partially written tree is removed.
func ExtractArchive(data []byte, destDir string) (*bundle.Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, xerrors.WithKind(xerrors.Wrap(err, "open archive"), xerrors.KindInput)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, xerrors.WithKind(xerrors.Wrap(err, "create extraction dir"), xerrors.KindStorage)
	}

	var total int64
	for _, f := range zr.File {
		if err := extractEntry(f, destDir, &total); err != nil {
			os.RemoveAll(destDir)
			return nil, err
		}
	}

	b, err := bundle.New(destDir)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, err
	}
	return b, nil
}

func extractEntry(f *zip.File, destDir string, total *int64) error {
	rel, ok := pathutil.CleanRelative(f.Name)
	if !ok || pathutil.HasDotSegments(rel) {
		return xerrors.Ef(xerrors.KindValidation, "unsafe path in archive: %s", f.Name)
	}
	target, ok := pathutil.WithinRoot(destDir, rel)
	if !ok {
		return xerrors.Ef(xerrors.KindValidation, "path escapes extraction dir: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if !f.FileInfo().Mode().IsRegular() {
		// symlinks and devices never belong in a web bundle
		return xerrors.Ef(xerrors.KindValidation, "unsupported entry type: %s", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return xerrors.Wrapf(err, "create dir for %s", rel)
	}

	rc, err := f.Open()
	if err != nil {
		return xerrors.Wrapf(err, "open archive entry %s", rel)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.Wrapf(err, "create %s", rel)
	}

	n, err := io.Copy(out, io.LimitReader(rc, maxTotalExtract-*total+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return xerrors.Wrapf(err, "write %s", rel)
	}
	*total += n
	if *total > maxTotalExtract {
		return xerrors.Ef(xerrors.KindValidation, "archive expands past %d bytes", maxTotalExtract)
	}
	return nil
}

// Fingerprint derives the source identity of a plain archive upload so
// re-submitting the same bytes trips the duplicate guard.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return "zip:sha256:" + hex.EncodeToString(sum[:])
}

// hoistWrapperDir flattens the single top-level directory that repository
// archive exports wrap their content in.
func hoistWrapperDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	wrapper := filepath.Join(dir, entries[0].Name())
	inner, err := os.ReadDir(wrapper)
	if err != nil {
		return err
	}
	for _, e := range inner {
		if err := os.Rename(filepath.Join(wrapper, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return os.Remove(wrapper)
}
