package who

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

const (
	APIURL            = "https://www.who.int/api/hubs/events"
	BaseEventURL      = "https://www.who.int/news-room/events/detail/"
	EventsURL         = "https://www.who.int/news-room/events"
	DefaultMaxEvents  = 50
	DefaultLocation   = "Online/Geneva"
	DefaultOrganizer  = "World Health Organization"
	filterStartLayout = "2006-01-02T00:00:00Z"
)

// Scraper queries the WHO events hub for upcoming events.
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
	maxEvents := lo.Ternary(s.config.MaxEvents > 0, s.config.MaxEvents, DefaultMaxEvents)
	resp, err := ctx.HTTP().Get(ctx, lo.CoalesceOrEmpty(s.config.URL, APIURL),
		httprequest.Header("Accept", "application/json"),
		httprequest.QueryParam("$orderby", "EventStart asc"),
		httprequest.QueryParam("$top", strconv.Itoa(maxEvents)),
		httprequest.QueryParam("$filter", "EventStart ge "+ctx.Now().Format(filterStartLayout)),
		httprequest.Primary(),
	)
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, resp.Body)
}

func (s *Scraper) Parse(ctx api.ScrapeContext, body []byte) ([]v1.Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "WHO API returned invalid JSON"}
	}

	var events []v1.Event
	gjson.GetBytes(body, "value").ForEach(func(_, item gjson.Result) bool {
		e, err := s.parseEvent(item)
		if err != nil {
			ctx.Warnf("error parsing event %q: %v", item.Get("Title").String(), err)
			return true
		}
		if e != nil {
			events = append(events, *e)
		}
		return true
	})
	return events, nil
}

func (s *Scraper) parseEvent(item gjson.Result) (*v1.Event, error) {
	title := strings.TrimSpace(item.Get("Title").String())
	if title == "" {
		return nil, nil
	}
	start, ok := parseTime(item.Get("EventStart").String())
	if !ok {
		return nil, nil
	}
	var end *time.Time
	if t, ok := parseTime(item.Get("EventEnd").String()); ok {
		end = &t
	}

	return v1.NewEvent(v1.Event{
		SourceID:    s.config.ID,
		Title:       title,
		Description: strings.TrimSpace(item.Get("Summary").String()),
		URL:         eventURL(item.Get("ItemDefaultUrl").String(), item.Get("UrlName").String()),
		Start:       start,
		End:         end,
		Timezone:    "UTC",
		Location:    lo.CoalesceOrEmpty(strings.TrimSpace(item.Get("Location").String()), DefaultLocation),
		Organizer:   DefaultOrganizer,
		Category:    s.config.Category,
		Raw:         map[string]any{"who_id": item.Get("Id").Value()},
	})
}

// eventURL prefers the dated default URL over the bare slug.
func eventURL(itemURL, urlName string) string {
	switch {
	case strings.HasPrefix(itemURL, "http"):
		return itemURL
	case itemURL != "":
		return BaseEventURL + strings.TrimLeft(itemURL, "/")
	case strings.HasPrefix(urlName, "http"):
		return urlName
	case urlName != "":
		return BaseEventURL + urlName
	}
	return EventsURL
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return utils.ToNaiveUTC(t), true
	}
	return utils.ParseDateTime(s, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02")
}
