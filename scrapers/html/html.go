package html

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	nethtml "golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/pkg/ratelimit"
	"github.com/flanksource/gid-seminars/utils"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// strategy extracts events from one site's listing page.
type strategy func(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error)

var strategies = map[string]strategy{
	"iasusa":    scrapeIASUSA,
	"avac":      scrapeAVAC,
	"tephi":     scrapeTEPHI,
	"tghn":      scrapeTGHN,
	"astmh":     scrapeASTMH,
	"usask_pcc": scrapeUSaskPCC,
	"isrv":      scrapeISRV,
}

// StrategyNames lists the supported scraper_type values.
func StrategyNames() []string {
	names := lo.Keys(strategies)
	sort.Strings(names)
	return names
}

// detailLimiter throttles follow-up requests to event detail pages.
var detailLimiter = ratelimit.NewHostLimiter(rate.Limit(2), 1)

// Scraper extracts events from organisation web pages using a strategy
// chosen by scraper_type.
type Scraper struct {
	config   v1.SourceConfig
	base     *url.URL
	strategy strategy
}

func New(config v1.SourceConfig) (api.Source, error) {
	if config.URL == "" {
		return nil, &v1.ConfigurationError{SourceID: config.ID, Message: "html source requires a url"}
	}
	fn, ok := strategies[config.ScraperType]
	if !ok {
		return nil, &v1.ConfigurationError{
			SourceID: config.ID,
			Message:  fmt.Sprintf("unknown scraper_type %q, expected one of %s", config.ScraperType, strings.Join(StrategyNames(), ", ")),
		}
	}
	base, err := url.Parse(config.URL)
	if err != nil {
		return nil, &v1.ConfigurationError{SourceID: config.ID, Message: fmt.Sprintf("invalid url %q: %v", config.URL, err)}
	}
	return &Scraper{config: config, base: base, strategy: fn}, nil
}

func (s *Scraper) ID() string {
	return s.config.ID
}

func (s *Scraper) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	resp, err := s.get(ctx, s.config.URL, httprequest.Primary())
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, resp.Body)
}

// Parse runs the configured strategy over a listing page.
func (s *Scraper) Parse(ctx api.ScrapeContext, body []byte) ([]v1.Event, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "invalid html", Cause: err}
	}
	events, err := s.strategy(ctx, s, page)
	if err != nil {
		return nil, err
	}
	return dedupe(events), nil
}

func (s *Scraper) get(ctx api.ScrapeContext, target string, opts ...httprequest.Option) (*httprequest.Response, error) {
	opts = append([]httprequest.Option{
		httprequest.Header("User-Agent", browserUserAgent),
		httprequest.Header("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"),
		httprequest.Header("Accept-Language", "en-US,en;q=0.5"),
	}, opts...)
	return ctx.HTTP().Get(ctx, target, opts...)
}

// resolve makes href absolute against the listing page URL.
func (s *Scraper) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return s.base.ResolveReference(ref).String()
}

// event fills the source defaults and validates; invalid entries are logged.
func (s *Scraper) event(ctx api.ScrapeContext, e v1.Event) (v1.Event, bool) {
	e.SourceID = s.config.ID
	e.Category = lo.CoalesceOrEmpty(e.Category, s.config.Category)
	e.Timezone = lo.CoalesceOrEmpty(e.Timezone, s.config.Timezone())
	out, err := v1.NewEvent(e)
	if err != nil {
		ctx.Warnf("skipping %q: %v", e.Title, err)
		return v1.Event{}, false
	}
	return *out, true
}

// blockText joins the trimmed text nodes under sel with sep.
func blockText(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *nethtml.Node)
	walk = func(n *nethtml.Node) {
		if n.Type == nethtml.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		if n.Type == nethtml.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// climb walks up to levels ancestors of sel, stopping at the first one
// accepted by match. The last ancestor visited is returned when none match.
func climb(sel *goquery.Selection, levels int, match func(*goquery.Selection) bool) *goquery.Selection {
	current := sel
	for i := 0; i < levels; i++ {
		parent := current.Parent()
		if parent.Length() == 0 {
			break
		}
		current = parent
		if match(current) {
			break
		}
	}
	return current
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func text(sel *goquery.Selection) string {
	return utils.NormalizeWhitespace(sel.Text())
}

// normalizedURL resolves href and folds case and the trailing slash so that
// relative and absolute links to the same page compare equal.
func (s *Scraper) normalizedURL(href string) string {
	return strings.TrimSuffix(strings.ToLower(s.resolve(href)), "/")
}

// dedupeKey is the normalized URL, or the title when an event has no link.
func dedupeKey(e v1.Event) string {
	if e.URL != "" {
		return strings.TrimSuffix(strings.ToLower(e.URL), "/")
	}
	return strings.ToLower(strings.TrimSpace(e.Title))
}

func dedupe(events []v1.Event) []v1.Event {
	return lo.UniqBy(events, dedupeKey)
}
