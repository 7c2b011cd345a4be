// Package classify derives a category from free text using keyword
// scoring. Tables are immutable configuration built once at process
// start; Classify is safe for concurrent use.
package classify

import (
	"strings"
	"unicode"
)

// DefaultCategory is the zero-score fallback.
const DefaultCategory = "general"

type entry struct {
	slug     string
	keywords []string
}

// Table is an ordered category → keyword-set mapping. Order matters:
// score ties resolve to the earliest defined category.
type Table struct {
	entries []entry
}

// NewTable builds a table from alternating slug/keyword-list pairs.
func NewTable(pairs ...any) Table {
	t := Table{}
	for i := 0; i+1 < len(pairs); i += 2 {
		slug, _ := pairs[i].(string)
		kws, _ := pairs[i+1].([]string)
		if slug == "" || len(kws) == 0 {
			continue
		}
		t.entries = append(t.entries, entry{slug: slug, keywords: kws})
	}
	return t
}

// ItemTable covers bundle/video/link submissions.
func ItemTable() Table {
	return NewTable(
		"game", []string{"game", "play", "puzzle", "quiz", "match", "racing", "adventure", "arcade", "shooter", "strategy", "memory", "cards"},
		"tool", []string{"tool", "calculator", "converter", "generator", "builder", "editor", "utility", "helper"},
		"tutorial", []string{"tutorial", "guide", "demo", "example", "walkthrough", "learn", "course"},
		"productivity", []string{"todo", "notes", "timer", "planner", "organizer", "tracker"},
	)
}

// ImageTable covers the image-marketplace flow.
func ImageTable() Table {
	return NewTable(
		"space", []string{"space", "galaxy", "stars", "cosmos", "planet", "nebula", "astronomy"},
		"india", []string{"india", "indian", "taj", "delhi", "mumbai", "temple", "diwali"},
		"nature", []string{"nature", "forest", "mountain", "river", "ocean", "wildlife", "landscape"},
		"tech", []string{"tech", "technology", "computer", "circuit", "robot", "code", "digital"},
		"abstract", []string{"abstract", "pattern", "geometric", "minimal", "texture", "gradient"},
		"people", []string{"people", "portrait", "person", "crowd", "face", "family"},
		"food", []string{"food", "cuisine", "dish", "recipe", "meal", "dessert"},
		"architecture", []string{"architecture", "building", "bridge", "skyline", "monument", "interior"},
		"animals", []string{"animal", "dog", "cat", "bird", "horse", "pet"},
		"travel", []string{"travel", "journey", "city", "beach", "island", "vacation"},
	)
}

// Classify scores the lowercased concatenation of title, description and
// filenames against every category. The strictly highest score wins;
// ties go to the first category in definition order; zero maps to
// DefaultCategory.
func (t Table) Classify(title, description string, files []string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte(' ')
	b.WriteString(description)
	for _, f := range files {
		b.WriteByte(' ')
		b.WriteString(f)
	}
	text := strings.ToLower(b.String())

	best := ""
	bestScore := 0
	for _, e := range t.entries {
		score := 0
		for _, kw := range e.keywords {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			best = e.slug
			bestScore = score
		}
	}
	if bestScore == 0 {
		return DefaultCategory
	}
	return best
}

// DisplayName derives a capitalized display name from a category slug.
func DisplayName(slug string) string {
	if slug == "" {
		return ""
	}
	r := []rune(slug)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
