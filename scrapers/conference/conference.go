package conference

import (
	"fmt"
	"strings"
	"time"

	"github.com/hairyhenderson/toml"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/scrapers/manual"
	"github.com/flanksource/gid-seminars/utils"
)

const DefaultFilePath = "data/conference_archives.toml"

// Scraper publishes `[[conference]]` recording archives as one event per
// conference, dated January 1st of the conference year.
type Scraper struct {
	config v1.SourceConfig
}

func New(config v1.SourceConfig) (api.Source, error) {
	return &Scraper{config: config}, nil
}

func (s *Scraper) ID() string {
	return s.config.ID
}

func (s *Scraper) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	path := manual.Path(ctx, s.config.FilePath, DefaultFilePath)
	data, ok, err := utils.ReadOptional(path)
	if err != nil {
		return nil, err
	} else if !ok {
		ctx.Warnf("conference file not found: %s", path)
		return nil, nil
	}
	return s.Parse(ctx, string(data))
}

func (s *Scraper) Parse(ctx api.ScrapeContext, data string) ([]v1.Event, error) {
	var doc map[string]any
	if _, err := toml.Decode(data, &doc); err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "failed to parse conference file", Cause: err}
	}

	var events []v1.Event
	for i, conf := range manual.Tables(doc, "conference") {
		e, err := s.parseConference(ctx, conf)
		if err != nil {
			ctx.Warnf("error parsing conference %d: %v", i, err)
			continue
		}
		if e != nil {
			events = append(events, *e)
		}
	}
	return events, nil
}

func (s *Scraper) parseConference(ctx api.ScrapeContext, conf map[string]any) (*v1.Event, error) {
	name := strings.TrimSpace(manual.String(conf, "name"))
	if name == "" {
		return nil, nil
	}

	year := ctx.Now().Year()
	if y, ok := conf["year"].(int64); ok {
		year = int(y)
	}
	dateRange := manual.String(conf, "date_range")
	access := "Free"
	if a, ok := conf["access"].(string); ok {
		access = a
	}
	topics := stringList(conf["topics"])

	var parts []string
	if d := manual.String(conf, "description"); d != "" {
		parts = append(parts, d)
	}
	if dateRange != "" {
		parts = append(parts, "Conference dates: "+dateRange)
	}
	if n, ok := conf["session_count"].(int64); ok && n > 0 {
		parts = append(parts, fmt.Sprintf("Sessions available: ~%d", n))
	}
	if access != "" {
		parts = append(parts, "Access: "+access)
	}
	if len(topics) > 0 {
		parts = append(parts, "Topics: "+strings.Join(lo.Slice(topics, 0, 5), ", "))
	}

	category := "Conference"
	if c := lo.CoalesceOrEmpty(manual.String(conf, "category"), s.config.Category); c != "" {
		category = "Conference - " + c
	}

	return v1.NewEvent(v1.Event{
		SourceID:    s.config.ID,
		Title:       "[Archive] " + name,
		Description: strings.Join(parts, "\n"),
		URL:         manual.String(conf, "url"),
		Start:       time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		Timezone:    "UTC",
		Location:    "Conference Archive",
		Organizer:   manual.String(conf, "organizer"),
		Category:    category,
		Raw: map[string]any{
			"type":       "conference_archive",
			"year":       year,
			"date_range": dateRange,
			"access":     access,
			"topics":     topics,
		},
	})
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	return lo.FilterMap(items, func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		return s, ok
	})
}
