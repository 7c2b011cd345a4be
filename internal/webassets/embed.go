// Package webassets embeds the static placeholder thumbnails served for
// items that ship no artwork of their own.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed placeholders
var embedded embed.FS

// PlaceholderFS is served under /placeholders/ on the public listener.
func PlaceholderFS() fs.FS {
	sub, err := fs.Sub(embedded, "placeholders")
	if err != nil {
		panic(fmt.Errorf("webassets: placeholders subfs: %w", err))
	}
	return sub
}

// PlaceholderPath returns the public URL path of the placeholder thumbnail
// for a category, falling back to the general one for unknown categories.
func PlaceholderPath(category string) string {
	name := category + ".svg"
	if _, err := fs.Stat(PlaceholderFS(), name); err != nil {
		name = "general.svg"
	}
	return "/placeholders/" + name
}
