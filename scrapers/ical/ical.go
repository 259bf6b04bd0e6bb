package ical

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/apognu/gocal"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

// Recurring events are expanded inside this window around now.
const (
	lookBehind = 365 * 24 * time.Hour
	lookAhead  = 2 * 365 * 24 * time.Hour
)

// Scraper reads iCalendar subscriptions.
type Scraper struct {
	config v1.SourceConfig
}

func New(config v1.SourceConfig) (api.Source, error) {
	if config.URL == "" {
		return nil, &v1.ConfigurationError{SourceID: config.ID, Message: "url is required for ical sources"}
	}
	return &Scraper{config: config}, nil
}

func (s *Scraper) ID() string {
	return s.config.ID
}

func (s *Scraper) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	resp, err := ctx.HTTP().Get(ctx, s.config.URL, httprequest.Conditional(), httprequest.Primary())
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, bytes.NewReader(resp.Body))
}

func (s *Scraper) Parse(ctx api.ScrapeContext, r io.Reader) ([]v1.Event, error) {
	parsed, err := parse(r, ctx.Now())
	if err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "failed to parse calendar", Cause: err}
	}

	var events []v1.Event
	for _, e := range parsed {
		event, err := s.toEvent(e)
		if err != nil {
			ctx.Warnf("error parsing event %q: %v", e.Summary, err)
			continue
		}
		if event != nil {
			events = append(events, *event)
		}
	}
	return events, nil
}

func parse(r io.Reader, now time.Time) ([]gocal.Event, error) {
	start, end := now.Add(-lookBehind), now.Add(lookAhead)

	c := gocal.NewParser(r)
	c.Start, c.End = &start, &end

	if err := c.Parse(); err != nil {
		return nil, err
	}
	return c.Events, nil
}

func (s *Scraper) toEvent(e gocal.Event) (*v1.Event, error) {
	title := strings.TrimSpace(e.Summary)
	if title == "" || e.Start == nil {
		return nil, nil
	}

	start := naive(*e.Start, e.RawStart)
	end := start.Add(v1.DefaultEventDuration)
	if e.End != nil && e.End.After(*e.Start) {
		end = naive(*e.End, e.RawEnd)
	}

	description := strings.TrimSpace(e.Description)
	url := strings.TrimSpace(e.URL)
	if url == "" && description != "" {
		url = utils.ExtractURL(description)
	}

	var organizer string
	if e.Organizer != nil {
		organizer = strings.TrimPrefix(lo.CoalesceOrEmpty(e.Organizer.Value, e.Organizer.Cn), "mailto:")
	}

	category := s.config.Category
	if len(e.Categories) > 0 && strings.TrimSpace(e.Categories[0]) != "" {
		category = strings.TrimSpace(e.Categories[0])
	}

	var raw map[string]any
	if e.Uid != "" {
		raw = map[string]any{"uid": e.Uid}
	}

	return v1.NewEvent(v1.Event{
		SourceID:    s.config.ID,
		Title:       title,
		Description: utils.Cut(description, utils.MaxDescriptionLength),
		URL:         url,
		Start:       start,
		End:         &end,
		Timezone:    s.config.Timezone(),
		Location:    lo.CoalesceOrEmpty(strings.TrimSpace(e.Location), "Online"),
		Organizer:   organizer,
		Category:    category,
		Raw:         raw,
	})
}

// naive converts zoned times through UTC and keeps floating times as
// written.
func naive(t time.Time, raw gocal.RawDate) time.Time {
	if strings.HasSuffix(raw.Value, "Z") || raw.Params["TZID"] != "" {
		return utils.ToNaiveUTC(t)
	}
	return utils.Naive(t)
}
