package backend

import (
	"fmt"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when no display languages are configured.
const DefaultLanguage = "en"

// CanonicalLanguages parses BCP 47 tags and returns their canonical forms in
// the given order, dropping duplicates. An empty list yields DefaultLanguage.
func CanonicalLanguages(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return []string{DefaultLanguage}, nil
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		tag, err := language.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", r, err)
		}
		s := tag.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// MatchLanguage maps a requested language (for example from a showlang
// parameter) to one of the configured display languages. "EN-us" matches
// "en" when only "en" is configured.
func (b *Backend) MatchLanguage(requested string) (string, bool) {
	tag, err := language.Parse(requested)
	if err != nil {
		return "", false
	}
	tags := make([]language.Tag, len(b.languages))
	for i, l := range b.languages {
		tags[i] = language.Make(l)
	}
	_, idx, conf := language.NewMatcher(tags).Match(tag)
	if conf == language.No {
		return "", false
	}
	return b.languages[idx], true
}
