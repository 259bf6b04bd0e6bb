package manual

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hairyhenderson/toml"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

const DefaultFilePath = "data/manual_seminars.toml"

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Scraper loads curated `[[seminar]]` entries from a TOML file.
type Scraper struct {
	config v1.SourceConfig
}

func New(config v1.SourceConfig) (api.Source, error) {
	return &Scraper{config: config}, nil
}

func (s *Scraper) ID() string {
	return s.config.ID
}

// Path resolves the manifest against the context base directory.
func Path(ctx api.ScrapeContext, filePath, fallback string) string {
	p := lo.CoalesceOrEmpty(filePath, fallback)
	if filepath.IsAbs(p) || ctx.BaseDir() == "" {
		return p
	}
	return filepath.Join(ctx.BaseDir(), p)
}

func (s *Scraper) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	path := Path(ctx, s.config.FilePath, DefaultFilePath)
	data, ok, err := utils.ReadOptional(path)
	if err != nil {
		return nil, err
	} else if !ok {
		ctx.Warnf("manual entries file not found: %s", path)
		return nil, nil
	}
	return s.Parse(ctx, string(data))
}

func (s *Scraper) Parse(ctx api.ScrapeContext, data string) ([]v1.Event, error) {
	var doc map[string]any
	if _, err := toml.Decode(data, &doc); err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "failed to parse manual entries", Cause: err}
	}

	var events []v1.Event
	for i, entry := range Tables(doc, "seminar") {
		e, err := s.parseEntry(entry)
		if err != nil {
			ctx.Warnf("error parsing entry %d: %v", i, err)
			continue
		}
		if e != nil {
			events = append(events, *e)
		}
	}
	return events, nil
}

func (s *Scraper) parseEntry(entry map[string]any) (*v1.Event, error) {
	title := strings.TrimSpace(String(entry, "title"))
	if title == "" {
		return nil, nil
	}
	if _, ok := entry["start_datetime"]; !ok {
		return nil, nil
	}

	start, err := dateTime(entry["start_datetime"])
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if v, ok := entry["end_datetime"]; ok {
		if t, err := dateTime(v); err == nil {
			end = &t
		}
	}

	access, ok := v1.ParseAccessRestriction(String(entry, "access_restriction"))
	if !ok {
		access = v1.AccessPublic
	}

	return v1.NewEvent(v1.Event{
		SourceID:          s.config.ID,
		Title:             title,
		Description:       String(entry, "description"),
		URL:               String(entry, "url"),
		Start:             start,
		End:               end,
		Timezone:          lo.CoalesceOrEmpty(String(entry, "timezone"), s.config.Timezone()),
		Location:          lo.CoalesceOrEmpty(String(entry, "location"), "Online"),
		Organizer:         String(entry, "organizer"),
		Category:          lo.CoalesceOrEmpty(String(entry, "category"), s.config.Category),
		Tags:              tags(entry["tags"]),
		AccessRestriction: access,
		RegistrationURL:   String(entry, "registration_url"),
		RecordingURL:      String(entry, "recording_url"),
	})
}

// dateTime accepts a TOML datetime or a string in one of the manifest layouts.
func dateTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		// local datetimes carry a marker zone and keep their wall clock
		if t.Location() == time.UTC || t.Location() == time.Local || strings.HasSuffix(t.Location().String(), "-local") {
			return utils.Naive(t), nil
		}
		return utils.ToNaiveUTC(t), nil
	case string:
		for _, layout := range dateTimeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("could not parse datetime: %s", t)
	}
	return time.Time{}, fmt.Errorf("unsupported datetime value %v", v)
}

func tags(v any) []string {
	switch t := v.(type) {
	case string:
		return lo.Compact(lo.Map(strings.Split(t, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
	case []any:
		return lo.Compact(lo.Map(t, func(s any, _ int) string { return strings.TrimSpace(fmt.Sprint(s)) }))
	case []string:
		return t
	}
	return []string{}
}

// Tables returns the array of tables stored under key.
func Tables(doc map[string]any, key string) []map[string]any {
	switch v := doc[key].(type) {
	case []map[string]any:
		return v
	case []any:
		var out []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// String returns entry[key] when it is a string.
func String(entry map[string]any, key string) string {
	if s, ok := entry[key].(string); ok {
		return s
	}
	return ""
}
