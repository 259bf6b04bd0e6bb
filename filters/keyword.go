package filters

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	v1 "github.com/flanksource/gid-seminars/api/v1"
)

// KeywordFilter keeps events whose title or description mentions one of
// Keywords as a whole word and none of ExcludeKeywords. Events in an
// excluded category are always dropped. An empty keyword list keeps
// everything that is not excluded.
type KeywordFilter struct {
	include    []*regexp.Regexp
	exclude    []*regexp.Regexp
	categories map[string]bool
}

func NewKeywordFilter(config v1.FilteringConfig) *KeywordFilter {
	fold := cases.Fold()
	f := &KeywordFilter{
		include:    wordPatterns(config.Keywords),
		exclude:    wordPatterns(config.ExcludeKeywords),
		categories: map[string]bool{},
	}
	for _, c := range config.ExcludeCategories {
		if c = strings.TrimSpace(c); c != "" {
			f.categories[fold.String(c)] = true
		}
	}
	return f
}

func wordPatterns(words []string) []*regexp.Regexp {
	var patterns []*regexp.Regexp
	for _, w := range words {
		if w = strings.TrimSpace(w); w == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}

// Active reports whether the filter would drop anything at all.
func (f *KeywordFilter) Active() bool {
	return len(f.include) > 0 || len(f.exclude) > 0 || len(f.categories) > 0
}

func (f *KeywordFilter) Matches(e v1.Event) bool {
	if e.Category != "" && f.categories[cases.Fold().String(strings.TrimSpace(e.Category))] {
		return false
	}

	text := e.Title + " " + e.Description
	for _, p := range f.exclude {
		if p.MatchString(text) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Filter returns the matching events and how many were dropped.
func (f *KeywordFilter) Filter(events []v1.Event) ([]v1.Event, int) {
	if !f.Active() {
		return events, 0
	}
	kept := make([]v1.Event, 0, len(events))
	for _, e := range events {
		if f.Matches(e) {
			kept = append(kept, e)
		}
	}
	return kept, len(events) - len(kept)
}
