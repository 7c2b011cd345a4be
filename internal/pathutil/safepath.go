// Package pathutil holds the path-safety predicates shared by the source
// adapters and the validation gate. Everything operates on slash-separated
// relative paths; callers normalize OS separators first.
package pathutil

import (
	"path"
	"path/filepath"
	"strings"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// CleanRelative normalizes an archive entry name to a slash-separated
// relative path. It returns ok=false for anything that cannot be placed
// safely under an extraction root: absolute paths, Windows drive/volume
// prefixes, and paths whose cleaned form still escapes upward.
func CleanRelative(name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == "" {
		return "", false
	}
	if path.IsAbs(cleaned) || strings.Contains(cleaned, ":") {
		return "", false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// WithinRoot joins rel under root and verifies the result stays inside
// root after cleaning. Defense in depth behind CleanRelative: even a rel
// that slipped through cannot produce a target outside root.
func WithinRoot(root, rel string) (string, bool) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root)
	if target != cleanRoot && !strings.HasPrefix(target, cleanRoot+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
