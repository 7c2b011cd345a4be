package catalog

import (
	"strconv"
	"strings"
	"unicode"
)

// maxSlugTitle bounds the sanitized title fragment of a slug.
const maxSlugTitle = 50

// MakeSlug derives the public slug for an assigned row id: the lowercased
// title with non-alphanumeric runs collapsed to single dashes, truncated,
// joined with the base-36 rendering of the id. The id suffix makes the
// result unique without any lookup.
func MakeSlug(title string, id uint) string {
	return sanitizeTitle(title) + "-" + strconv.FormatUint(uint64(id), 36)
}

func sanitizeTitle(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) && r < 128 {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	s := b.String()
	if len(s) > maxSlugTitle {
		s = strings.TrimRight(s[:maxSlugTitle], "-")
	}
	if s == "" {
		s = "item"
	}
	return s
}
