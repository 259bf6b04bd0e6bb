package podcast

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

const (
	DefaultMaxEpisodes = 10
	maxSummaryLength   = 1500
)

// Scraper publishes recent podcast episodes from an RSS feed.
type Scraper struct {
	config v1.SourceConfig
}

func New(config v1.SourceConfig) (api.Source, error) {
	if config.URL == "" {
		return nil, &v1.ConfigurationError{SourceID: config.ID, Message: "url is required for podcast sources"}
	}
	return &Scraper{config: config}, nil
}

func (s *Scraper) ID() string {
	return s.config.ID
}

func (s *Scraper) maxEpisodes() int {
	return lo.Ternary(s.config.MaxEpisodes > 0, s.config.MaxEpisodes, DefaultMaxEpisodes)
}

func (s *Scraper) daysBack() int {
	return lo.Ternary(s.config.DaysBack > 0, s.config.DaysBack, utils.DefaultDaysBehind)
}

func (s *Scraper) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	resp, err := ctx.HTTP().Get(ctx, s.config.URL, httprequest.Conditional(), httprequest.Primary())
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, resp.Body)
}

// Parse keeps at most maxEpisodes episodes published within the lookback
// window, scanning twice that many items.
func (s *Scraper) Parse(ctx api.ScrapeContext, body []byte) ([]v1.Event, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "failed to parse podcast feed", Cause: err}
	}

	channel := xmlquery.FindOne(doc, "//channel")
	if channel == nil {
		ctx.Warnf("no channel found in feed")
		return nil, nil
	}
	podcast := lo.CoalesceOrEmpty(text(child(channel, "", "title")), "Unknown Podcast")
	cutoff := ctx.Now().AddDate(0, 0, -s.daysBack())

	items := xmlquery.Find(channel, "item")
	if limit := s.maxEpisodes() * 2; len(items) > limit {
		items = items[:limit]
	}

	var events []v1.Event
	for _, item := range items {
		e, err := s.parseEpisode(item, podcast, cutoff)
		if err != nil {
			ctx.Warnf("error parsing episode: %v", err)
			continue
		}
		if e == nil {
			continue
		}
		events = append(events, *e)
		if len(events) >= s.maxEpisodes() {
			break
		}
	}
	return events, nil
}

func (s *Scraper) parseEpisode(item *xmlquery.Node, podcast string, cutoff time.Time) (*v1.Event, error) {
	title := text(child(item, "", "title"))
	if title == "" {
		return nil, nil
	}
	pubDate := text(child(item, "", "pubDate"))
	if pubDate == "" {
		return nil, nil
	}
	published, err := mail.ParseDate(pubDate)
	if err != nil {
		return nil, fmt.Errorf("invalid pubDate %q: %w", pubDate, err)
	}
	start := utils.ToNaiveUTC(published)
	if start.Before(cutoff) {
		return nil, nil
	}

	description := text(child(item, "", "description"))
	if encoded := text(child(item, "content", "encoded")); len(encoded) > len(description) {
		description = encoded
	}
	description = utils.NormalizeWhitespace(utils.StripTags(description))

	var recording string
	if enclosure := child(item, "", "enclosure"); enclosure != nil {
		recording = enclosure.SelectAttr("url")
	}
	url := lo.CoalesceOrEmpty(text(child(item, "", "link")), recording)
	duration := text(child(item, "itunes", "duration"))

	summary := fmt.Sprintf("[Podcast: %s]", podcast)
	if duration != "" {
		summary += " Duration: " + duration
	}
	if description != "" {
		summary += "\n\n" + utils.Cut(description, maxSummaryLength)
	}

	return v1.NewEvent(v1.Event{
		SourceID:     s.config.ID,
		Title:        title,
		Description:  summary,
		URL:          url,
		RecordingURL: recording,
		Start:        start,
		Timezone:     "UTC",
		Location:     "Podcast",
		Organizer:    podcast,
		Category:     s.config.Category,
		Raw:          map[string]any{"type": "podcast", "duration": duration},
	})
}

// child finds the first direct element child by namespace prefix and local name.
func child(n *xmlquery.Node, prefix, local string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local && c.Prefix == prefix {
			return c
		}
	}
	return nil
}

func text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}
