package rss

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

var airDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Air date:\s*(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}\s*[AP]M)`),
	regexp.MustCompile(`(?i)Air date:\s*(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}\s*[AP]M)`),
	regexp.MustCompile(`(?i)Air date:\s*(\d{1,2}/\d{1,2}/\d{4})`),
}

// Scraper reads RSS and Atom feeds such as NIH VideoCast.
type Scraper struct {
	config v1.SourceConfig
}

func New(config v1.SourceConfig) (api.Source, error) {
	if config.URL == "" {
		return nil, &v1.ConfigurationError{SourceID: config.ID, Message: "url is required for rss sources"}
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
	return s.Parse(ctx, string(resp.Body))
}

// Parse converts a feed document into events. Entries without a title or
// a resolvable start time are dropped.
func (s *Scraper) Parse(ctx api.ScrapeContext, body string) ([]v1.Event, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "failed to parse feed", Cause: err}
	}

	var events []v1.Event
	for _, item := range feed.Items {
		e, err := s.parseItem(item)
		if err != nil {
			ctx.Warnf("error parsing entry %q: %v", item.Title, err)
			continue
		}
		if e != nil {
			events = append(events, *e)
		}
	}
	return events, nil
}

func (s *Scraper) parseItem(item *gofeed.Item) (*v1.Event, error) {
	title := v1.NormalizeTitle(html.UnescapeString(item.Title))
	if title == "" {
		return nil, nil
	}

	rawDescription := lo.CoalesceOrEmpty(item.Description, item.Content)
	start, ok := extractStart(item, rawDescription)
	if !ok {
		return nil, nil
	}

	category := s.config.Category
	if len(item.Categories) > 0 && item.Categories[0] != "" {
		category = item.Categories[0]
	}

	return v1.NewEvent(v1.Event{
		SourceID:          s.config.ID,
		Title:             title,
		Description:       utils.Cut(utils.CleanHTML(rawDescription), utils.MaxDescriptionLength),
		URL:               item.Link,
		Start:             start,
		Timezone:          s.config.Timezone(),
		Location:          "Online",
		Organizer:         organizer(item),
		Category:          category,
		AccessRestriction: v1.ClassifyAccess(title),
		Raw:               raw(item),
	})
}

// extractStart tries the air date in the description, then the author
// field, then the published and updated timestamps.
func extractStart(item *gofeed.Item, description string) (time.Time, bool) {
	for _, p := range airDatePatterns {
		if m := p.FindStringSubmatch(description); m != nil {
			if t, ok := utils.ParseDateTime(m[1]); ok {
				return t, true
			}
		}
	}
	if author := authorName(item); author != "" {
		if t, ok := utils.ParseDateTime(author); ok {
			return t, true
		}
	}
	if item.PublishedParsed != nil {
		return utils.ToNaiveUTC(*item.PublishedParsed), true
	}
	if item.UpdatedParsed != nil {
		return utils.ToNaiveUTC(*item.UpdatedParsed), true
	}
	return time.Time{}, false
}

func authorName(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return strings.TrimSpace(item.Authors[0].Name)
	}
	return ""
}

func organizer(item *gofeed.Item) string {
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	if author := authorName(item); author != "" {
		if _, isDate := utils.ParseDateTime(author); !isDate {
			return author
		}
	}
	return ""
}

func raw(item *gofeed.Item) map[string]any {
	r := map[string]any{
		"title": item.Title,
		"link":  item.Link,
	}
	if item.GUID != "" {
		r["guid"] = item.GUID
	}
	if item.Published != "" {
		r["published"] = item.Published
	}
	if item.Updated != "" {
		r["updated"] = item.Updated
	}
	if author := authorName(item); author != "" {
		r["author"] = author
	}
	if len(item.Categories) > 0 {
		r["categories"] = item.Categories
	}
	return r
}
