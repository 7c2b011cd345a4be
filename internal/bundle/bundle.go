// Package bundle holds the transient representation of an extracted
// content tree and the static validation gate it must pass before an
// item row is created.
package bundle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// Bundle is the normalized local file tree produced by a source adapter.
// It is consumed and discarded by the gate; only the file tree survives
// as the published asset tree.
type Bundle struct {
	// Root is the absolute extraction directory.
	Root string

	// Files is the flat inventory of slash-separated relative paths.
	Files []string

	// TotalBytes is the summed size of every file in the inventory.
	TotalBytes int64

	// EntryDoc is the relative path of the load target, "" if none found.
	EntryDoc string
}

// Inventory walks root and returns the flat file list plus total size.
// Directories are implicit; symlinks are skipped so a link cannot pull
// content from outside the tree into the inventory.
func Inventory(root string) ([]string, int64, error) {
	var files []string
	var total int64

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, xerrors.Wrapf(err, "inventory %s", root)
	}
	return files, total, nil
}

// New inventories root and detects the entry document: index.html at
// the root, else one directory level down, else the first one at any
// depth. Repository exports often nest the page deeper than one level.
func New(root string) (*Bundle, error) {
	files, total, err := Inventory(root)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		Root:       root,
		Files:      files,
		TotalBytes: total,
	}
	b.EntryDoc = findEntryDoc(files)
	return b, nil
}

func findEntryDoc(files []string) string {
	for _, f := range files {
		if strings.EqualFold(f, "index.html") {
			return f
		}
	}
	for _, f := range files {
		low := strings.ToLower(f)
		if strings.HasSuffix(low, "/index.html") && strings.Count(f, "/") == 1 {
			return f
		}
	}
	// deeper nesting still counts as a load target for repo exports
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f), "/index.html") {
			return f
		}
	}
	return ""
}

// Remove deletes the extracted tree. Safe to call twice.
func (b *Bundle) Remove() error {
	if b == nil || b.Root == "" {
		return nil
	}
	return os.RemoveAll(b.Root)
}

// HumanSize renders a byte count the way the submit response reports it.
func HumanSize(n int64) string {
	const mb = 1 << 20
	if n < mb {
		return fmt.Sprintf("%.2fKB", float64(n)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(n)/mb)
}
