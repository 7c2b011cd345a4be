package catalog

import (
	"sort"
	"strings"
)

// SourceByID fetches one registry entry.
func (s *Store) SourceByID(id uint) (*AppSource, error) {
	var src AppSource
	if err := s.db.First(&src, id).Error; err != nil {
		return nil, storeErr(err, "source")
	}
	return &src, nil
}

// CreateSource inserts a curated registry entry.
func (s *Store) CreateSource(src *AppSource) error {
	return storeErr(s.db.Create(src).Error, "source")
}

// SearchSources ranks registry entries against free-text keywords by tag
// overlap plus name/description substring hits. An empty query returns
// the whole registry.
func (s *Store) SearchSources(query string) ([]AppSource, error) {
	var all []AppSource
	if err := s.db.Find(&all).Error; err != nil {
		return nil, storeErr(err, "source")
	}

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return all, nil
	}

	type scored struct {
		src   AppSource
		score int
	}
	var ranked []scored
	for _, src := range all {
		tags := map[string]bool{}
		for _, t := range strings.Split(strings.ToLower(src.Tags), ",") {
			tags[strings.TrimSpace(t)] = true
		}
		text := strings.ToLower(src.Name + " " + src.Description)

		score := 0
		for _, w := range words {
			if tags[w] {
				score += 2
			}
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{src, score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]AppSource, len(ranked))
	for i, r := range ranked {
		out[i] = r.src
	}
	return out, nil
}
