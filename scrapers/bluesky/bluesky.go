package bluesky

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

const (
	DefaultService       = "https://bsky.social"
	DefaultDaysBack      = 30
	DefaultLimitPerQuery = 50
	accountQuery         = "seminar OR webinar OR lecture"

	EnvHandle      = "BLUESKY_HANDLE"
	EnvAppPassword = "BLUESKY_APP_PASSWORD"
)

// Scraper searches Bluesky posts for seminar announcements.
type Scraper struct {
	config   v1.SourceConfig
	handle   string
	password string
}

// New fails when the account credentials are not in the environment.
func New(config v1.SourceConfig) (api.Source, error) {
	s := &Scraper{
		config:   config,
		handle:   os.Getenv(EnvHandle),
		password: os.Getenv(EnvAppPassword),
	}
	if s.handle == "" || s.password == "" {
		return nil, &v1.ConfigurationError{
			SourceID: config.ID,
			Message:  fmt.Sprintf("bluesky authentication required, set %s and %s", EnvHandle, EnvAppPassword),
		}
	}
	return s, nil
}

func (s *Scraper) ID() string {
	return s.config.ID
}

func (s *Scraper) service() string {
	return strings.TrimSuffix(lo.CoalesceOrEmpty(s.config.URL, DefaultService), "/")
}

func (s *Scraper) login(ctx api.ScrapeContext) (string, error) {
	body := gabs.New()
	_, _ = body.Set(s.handle, "identifier")
	_, _ = body.Set(s.password, "password")

	resp, err := ctx.HTTP().Do(ctx, "POST", s.service()+"/xrpc/com.atproto.server.createSession",
		httprequest.Header("Content-Type", "application/json"),
		httprequest.Body(body.String()),
	)
	if err != nil {
		return "", err
	}
	session, err := gabs.ParseJSON(resp.Body)
	if err != nil {
		return "", &v1.ParseError{SourceID: s.config.ID, Message: "invalid session response", Cause: err}
	}
	token, ok := session.Path("accessJwt").Data().(string)
	if !ok || token == "" {
		return "", &v1.ParseError{SourceID: s.config.ID, Message: "session response has no access token"}
	}
	ctx.Debugf("authenticated as %s", s.handle)
	return token, nil
}

type search struct {
	label  string
	query  string
	author string
}

func (s *Scraper) searches() []search {
	var out []search
	for _, q := range s.config.SearchQueries {
		out = append(out, search{label: fmt.Sprintf("query '%s'", q), query: q})
	}
	for _, a := range s.config.SearchAccounts {
		if a == "" {
			continue
		}
		out = append(out, search{label: fmt.Sprintf("account '%s'", a), query: accountQuery, author: a})
	}
	return out
}

// Fetch runs every keyword and account search. A failing search is logged
// and skipped, the fetch fails only when every search failed.
func (s *Scraper) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	token, err := s.login(ctx)
	if err != nil {
		return nil, err
	}

	daysBack := lo.Ternary(s.config.DaysBack > 0, s.config.DaysBack, DefaultDaysBack)
	limit := lo.Ternary(s.config.LimitPerQuery > 0, s.config.LimitPerQuery, DefaultLimitPerQuery)
	since := ctx.Now().AddDate(0, 0, -daysBack).Format("2006-01-02T00:00:00.000Z")

	var (
		events  []v1.Event
		seen    = map[string]bool{}
		lastErr error
		failed  int
	)
	searches := s.searches()
	for _, q := range searches {
		opts := []httprequest.Option{
			httprequest.Header("Authorization", "Bearer "+token),
			httprequest.QueryParam("q", q.query),
			httprequest.QueryParam("limit", strconv.Itoa(limit)),
			httprequest.QueryParam("sort", "latest"),
			httprequest.QueryParam("since", since),
		}
		if q.author != "" {
			opts = append(opts, httprequest.QueryParam("author", q.author))
		}
		resp, err := ctx.HTTP().Get(ctx, s.service()+"/xrpc/app.bsky.feed.searchPosts", opts...)
		if err != nil {
			ctx.Warnf("%s failed: %v", q.label, err)
			lastErr, failed = err, failed+1
			continue
		}
		found, err := s.Parse(ctx, resp.Body, seen)
		if err != nil {
			ctx.Warnf("%s failed: %v", q.label, err)
			lastErr, failed = err, failed+1
			continue
		}
		if len(found) > 0 {
			ctx.Debugf("%s: %d posts", q.label, len(found))
		}
		events = append(events, found...)
	}
	if len(searches) > 0 && failed == len(searches) {
		return nil, lastErr
	}
	return events, nil
}

// Parse converts a searchPosts response, skipping posts whose uri is
// already in seen.
func (s *Scraper) Parse(ctx api.ScrapeContext, body []byte, seen map[string]bool) ([]v1.Event, error) {
	doc, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, &v1.ParseError{SourceID: s.config.ID, Message: "invalid search response", Cause: err}
	}

	var events []v1.Event
	for _, post := range doc.S("posts").Children() {
		uri := str(post, "uri")
		if seen[uri] {
			continue
		}
		seen[uri] = true

		e, err := s.parsePost(post)
		if err != nil {
			ctx.Debugf("skipping post %s: %v", uri, err)
			continue
		}
		if e != nil {
			events = append(events, *e)
		}
	}
	return events, nil
}

func (s *Scraper) parsePost(post *gabs.Container) (*v1.Event, error) {
	text := strings.TrimSpace(str(post, "record.text"))
	if text == "" || !LooksLikeSeminar(text) {
		return nil, nil
	}

	start, ok := ExtractDateTime(text)
	if !ok {
		created := str(post, "record.createdAt")
		if created == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, err
		}
		start = utils.ToNaiveUTC(t)
	}

	title := ExtractTitle(text)
	if title == "" {
		return nil, nil
	}

	uri := str(post, "uri")
	handle := str(post, "author.handle")
	postURL := PostURL(uri, handle)

	return v1.NewEvent(v1.Event{
		SourceID:    s.config.ID,
		Title:       title,
		Description: utils.Cut(text, utils.MaxDescriptionLength),
		URL:         lo.CoalesceOrEmpty(embeddedURL(post), postURL),
		Start:       start,
		Timezone:    s.config.Timezone(),
		Location:    "Online",
		Organizer:   lo.CoalesceOrEmpty(str(post, "author.displayName"), handle),
		Category:    s.config.Category,
		Raw: map[string]any{
			"bluesky_uri":   uri,
			"author_handle": handle,
			"post_url":      postURL,
		},
	})
}

func str(c *gabs.Container, path string) string {
	s, _ := c.Path(path).Data().(string)
	return s
}

// embeddedURL returns the external embed link, else the first link facet.
func embeddedURL(post *gabs.Container) string {
	if uri := str(post, "record.embed.external.uri"); uri != "" {
		return uri
	}
	for _, facet := range post.Path("record.facets").Children() {
		for _, feature := range facet.S("features").Children() {
			if uri := str(feature, "uri"); uri != "" {
				return uri
			}
		}
	}
	return ""
}

// PostURL converts at://did/app.bsky.feed.post/<rkey> into a web link.
func PostURL(uri, handle string) string {
	if uri == "" {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(uri, "at://"), "/")
	if len(parts) < 3 {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, parts[len(parts)-1])
}

var (
	seminarKeywords = []string{
		"seminar", "webinar", "lecture", "talk", "presentation",
		"symposium", "colloquium", "workshop", "conference",
		"speaker", "presenting", "join us",
	}
	timeIndicators = []string{
		"pm", "am", "noon", "et", "pt", "ct", "est", "pst", "cst",
		"register", "zoom", "link", "join",
	}
	timeIndicatorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}:\d{2}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}`),
	}
	trailingHashtag = regexp.MustCompile(`\s*#\w+\s*$`)
	datePatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\w+ \d{1,2},? \d{4})\s+(?:at\s+)?(\d{1,2}:\d{2}\s*[AP]M)`),
		regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2}/\d{4})\s+(\d{1,2}:\d{2}\s*[AP]M)`),
		regexp.MustCompile(`(?i)(\w{3,9}\s+\d{1,2})(?:st|nd|rd|th)?\s+(?:at\s+)?(\d{1,2}(?::\d{2})?\s*[AP]M)`),
	}
)

// LooksLikeSeminar requires a seminar keyword and a time or registration hint.
func LooksLikeSeminar(text string) bool {
	lower := strings.ToLower(text)
	if !lo.SomeBy(seminarKeywords, func(k string) bool { return strings.Contains(lower, k) }) {
		return false
	}
	if lo.SomeBy(timeIndicators, func(k string) bool { return strings.Contains(lower, k) }) {
		return true
	}
	return lo.SomeBy(timeIndicatorPatterns, func(p *regexp.Regexp) bool { return p.MatchString(lower) })
}

// ExtractDateTime finds the first date and time pair in free text.
func ExtractDateTime(text string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := utils.ParseDateTimeParts(m[1], m[2]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractTitle uses the first line without its trailing hashtag, joining
// the second line when the first one is too short.
func ExtractTitle(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	first := strings.TrimSpace(lines[0])
	first = trailingHashtag.ReplaceAllString(first, "")
	first = utils.Truncate(first, utils.MaxTitleLength, "...")
	if len(first) < 20 && len(lines) > 1 {
		first = utils.Cut(strings.Join(lines[:2], " "), utils.MaxTitleLength)
	}
	return first
}
