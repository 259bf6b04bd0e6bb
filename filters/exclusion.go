package filters

import (
	"regexp"
	"strings"

	"github.com/flanksource/commons/logger"
	"github.com/gobwas/glob"
	"github.com/hairyhenderson/toml"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

type urlRule struct {
	URL    string `toml:"url"`
	Reason string `toml:"reason"`
}

type titleRule struct {
	Pattern string `toml:"pattern"`
	Reason  string `toml:"reason"`
}

type exclusionsFile struct {
	ExcludeURL   []urlRule   `toml:"exclude_url"`
	ExcludeTitle []titleRule `toml:"exclude_title"`
}

type urlPattern struct {
	glob   glob.Glob
	reason string
}

type titlePattern struct {
	re     *regexp.Regexp
	reason string
}

// ExclusionFilter drops hand-picked events by URL (exact or glob) or by a
// case-insensitive title pattern.
type ExclusionFilter struct {
	urls     map[string]string
	globs    []urlPattern
	patterns []titlePattern
	log      logger.Logger
}

// LoadExclusions reads an exclusions TOML file. A missing file yields an
// empty filter. Invalid patterns are logged and skipped.
func LoadExclusions(path string, log logger.Logger) (*ExclusionFilter, error) {
	if log == nil {
		log = logger.StandardLogger()
	}
	f := &ExclusionFilter{urls: map[string]string{}, log: log}
	if path == "" {
		return f, nil
	}
	data, ok, err := utils.ReadOptional(path)
	if err != nil {
		return f, err
	} else if !ok {
		log.Debugf("no exclusions file at %s", path)
		return f, nil
	}
	var file exclusionsFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return f, err
	}
	f.add(file)
	return f, nil
}

func (f *ExclusionFilter) add(file exclusionsFile) {
	for _, rule := range file.ExcludeURL {
		if rule.URL == "" {
			continue
		}
		reason := reasonOrDefault(rule.Reason)
		if strings.ContainsAny(rule.URL, "*?[{") {
			g, err := glob.Compile(rule.URL)
			if err != nil {
				f.log.Warnf("invalid url pattern %q: %v", rule.URL, err)
				continue
			}
			f.globs = append(f.globs, urlPattern{glob: g, reason: reason})
		} else {
			f.urls[rule.URL] = reason
		}
		f.log.Debugf("excluding url %s (%s)", rule.URL, reason)
	}
	for _, rule := range file.ExcludeTitle {
		if rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			f.log.Warnf("invalid title pattern %q: %v", rule.Pattern, err)
			continue
		}
		f.patterns = append(f.patterns, titlePattern{re: re, reason: reasonOrDefault(rule.Reason)})
	}
	if n := f.Len(); n > 0 {
		f.log.Debugf("loaded %d exclusion rule(s)", n)
	}
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "No reason given"
	}
	return reason
}

// Len is the number of active rules.
func (f *ExclusionFilter) Len() int {
	return len(f.urls) + len(f.globs) + len(f.patterns)
}

// Excluded reports whether e is excluded and why.
func (f *ExclusionFilter) Excluded(e v1.Event) (bool, string) {
	if e.URL != "" {
		if _, ok := f.urls[e.URL]; ok {
			return true, "URL in exclusion list"
		}
		for _, g := range f.globs {
			if g.glob.Match(e.URL) {
				return true, "URL matches pattern: " + g.reason
			}
		}
	}
	for _, p := range f.patterns {
		if p.re.MatchString(e.Title) {
			return true, "Title matches pattern: " + p.reason
		}
	}
	return false, ""
}

// Filter drops excluded events and returns how many were removed.
func (f *ExclusionFilter) Filter(events []v1.Event) ([]v1.Event, int) {
	if f == nil || f.Len() == 0 {
		return events, 0
	}
	kept := make([]v1.Event, 0, len(events))
	for _, e := range events {
		if excluded, reason := f.Excluded(e); excluded {
			f.log.Debugf("excluded %q: %s", e.Title, reason)
			continue
		}
		kept = append(kept, e)
	}
	if removed := len(events) - len(kept); removed > 0 {
		f.log.Infof("Filtered out %d excluded event(s)", removed)
	}
	return kept, len(events) - len(kept)
}
