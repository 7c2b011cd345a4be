package bundle

import (
	"os"
	"path/filepath"
)

// iconNames lists recognized icon filenames in priority order.
var iconNames = []string{
	"favicon.ico",
	"favicon.png",
	"logo.png",
	"icon.png",
	"app-icon.png",
}

// ResolveIcon looks for a well-known icon file at the bundle root, then one
// directory level down. It returns a slash-separated path relative to root,
// or "" when no icon is present.
func ResolveIcon(root string) string {
	for _, name := range iconNames {
		if isRegular(filepath.Join(root, name)) {
			return name
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, name := range iconNames {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if isRegular(filepath.Join(root, e.Name(), name)) {
				return e.Name() + "/" + name
			}
		}
	}
	return ""
}

func isRegular(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
