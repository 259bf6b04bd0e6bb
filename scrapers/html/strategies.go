package html

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

const months = `(January|February|March|April|May|June|July|August|September|October|November|December)`

var (
	longDatePattern    = regexp.MustCompile(`(?i)` + months + `\s+\d{1,2},?\s+\d{4}`)
	clockPattern       = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(AM|PM)`)
	presenterPattern   = regexp.MustCompile(`(?i)Presenter:\s*([^\n]+)`)
	dayMonthPattern    = regexp.MustCompile(`(?i)(\d{1,2})\s*(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)`)
	slashRangePattern  = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})\s*-\s*(\d{1,2}/\d{1,2}/\d{4})`)
	slashDatePattern   = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	weekdayPattern     = regexp.MustCompile(`(?i)(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)`)
	weekdayDatePattern = regexp.MustCompile(`(?i)(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),?\s*` + months + `\s+(\d{1,2})\s*,?\s*(\d{4})`)
	commaSpacing       = regexp.MustCompile(`\s*,\s*`)
	presentersPattern  = regexp.MustCompile(`(?i)Presenters?\s*:?\s*([^|]+?)(?:Register|Webinar|$)`)
	dayRangePattern    = regexp.MustCompile(`(?i)(\d{1,2})[-–]\d{1,2}\s+` + months + `\s+(\d{4})`)
	dayFirstPattern    = regexp.MustCompile(`(?i)(\d{1,2})\s+` + months + `\s+(\d{4})`)
	monthFirstPattern  = regexp.MustCompile(`(?i)` + months + `\s+(\d{1,2}),?\s+(\d{4})`)
	meridiemPattern    = regexp.MustCompile(`(?i)\d{1,2}(?::\d{2})?\s*(am|pm)`)
	boilerplatePattern = regexp.MustCompile(`^(Register|Click|Time|Date|Location)`)
)

const usaskDescription = "Post-COVID Condition webinar series by University of Saskatchewan."

// scrapeIASUSA reads webinar links and the date block around each one.
func scrapeIASUSA(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error) {
	var events []v1.Event
	seen := map[string]bool{}
	page.Find(`a[href*="/events/webinar-"]`).Each(func(_ int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		key := s.normalizedURL(href)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		title := lo.CoalesceOrEmpty(strings.TrimSpace(link.AttrOr("title", "")), text(link))
		if len(title) < 10 {
			return
		}

		block := link.Closest(`div[class*="event-item"], div[class*="post-item"]`)
		if block.Length() == 0 {
			block = climb(link, 6, func(sel *goquery.Selection) bool {
				return goquery.NodeName(sel) == "div" && containsAny(sel.Text(), "January", "February", "March")
			})
		}
		content := blockText(block, "\n")

		date := longDatePattern.FindString(content)
		if date == "" {
			return
		}
		start, ok := utils.ParseDateTime(utils.NormalizeWhitespace(date + " " + clockPattern.FindString(content)))
		if !ok {
			return
		}

		e := v1.Event{
			Title:    title,
			URL:      s.resolve(href),
			Start:    start,
			Location: "Online",
		}
		if m := presenterPattern.FindStringSubmatch(content); m != nil {
			presenter := strings.TrimSpace(m[1])
			e.Description = "Presenter: " + presenter
			e.Organizer = strings.TrimSpace(strings.Split(presenter, ",")[0])
		}
		if out, ok := s.event(ctx, e); ok {
			events = append(events, out)
		}
	})
	return events, nil
}

// scrapeAVAC reads event cards, preferring the machine readable <time> date.
func scrapeAVAC(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error) {
	var events []v1.Event
	seen := map[string]bool{}
	page.Find(`a[class*="event-card"]`).Each(func(_ int, card *goquery.Selection) {
		href := card.AttrOr("href", "")
		key := s.normalizedURL(href)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		title := text(card.Find("h3").First())
		if title == "" {
			title = text(card)
		}
		if len(title) < 10 {
			return
		}

		content := blockText(card, " ")
		var start time.Time
		if dt, ok := card.Find("time[datetime]").First().Attr("datetime"); ok {
			start, _ = utils.ParseDateTime(dt)
		}
		if start.IsZero() {
			if m := dayMonthPattern.FindStringSubmatch(content); m != nil {
				if t, err := time.Parse("2 Jan", m[1]+" "+m[2]); err == nil {
					start = utils.RollForward(t)
				}
			}
		}
		if start.IsZero() {
			return
		}

		e := v1.Event{
			Title:     title,
			URL:       s.resolve(href),
			Start:     start,
			Organizer: "AVAC",
		}
		if strings.Contains(strings.ToLower(content), "webinar") {
			e.Location = "Online"
		}
		if out, ok := s.event(ctx, e); ok {
			events = append(events, out)
		}
	})
	return events, nil
}

// scrapeTEPHI reads div.event blocks with a split month/day/year date.
func scrapeTEPHI(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error) {
	var events []v1.Event
	seen := map[string]bool{}
	page.Find("div.event").Each(func(_ int, block *goquery.Selection) {
		href := block.Find("a[href]").First().AttrOr("href", "")
		key := s.normalizedURL(href)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		title := text(block.Find("h3.title").First())
		if title == "" {
			return
		}

		date := block.Find("div.date").First()
		month, day, year := text(date.Find("span.month")), text(date.Find("span.day")), text(date.Find("span.year"))
		if month == "" || day == "" || year == "" {
			return
		}
		start, ok := utils.ParseDateTime(month+" "+day+" "+year, "Jan 2 2006", "January 2 2006")
		if !ok {
			return
		}
		block.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			if !strings.Contains(p.Text(), "Time:") {
				return true
			}
			if clock := clockPattern.FindString(p.Text()); clock != "" {
				start = utils.AtClock(start, clock)
			}
			return false
		})

		location := "Online"
		if loc := text(block.Find("p.subtitle").First()); strings.Contains(loc, "Location:") {
			location = lo.CoalesceOrEmpty(strings.TrimSpace(strings.ReplaceAll(loc, "Location:", "")), location)
		}

		if out, ok := s.event(ctx, v1.Event{
			Title:     title,
			URL:       s.resolve(href),
			Start:     start,
			Location:  location,
			Organizer: "Texas EPHI",
		}); ok {
			events = append(events, out)
		}
	})
	return events, nil
}

// scrapeTGHN returns nothing: the listing is rendered client side.
func scrapeTGHN(ctx api.ScrapeContext, _ *Scraper, _ *goquery.Document) ([]v1.Event, error) {
	ctx.Warnf("TGHN events are loaded by javascript, skipping")
	return nil, nil
}

// scrapeASTMH reads BoxList entries dated m/d/yyyy, optionally as a range.
func scrapeASTMH(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error) {
	var events []v1.Event
	seen := map[string]bool{}
	page.Find("div.BoxList").Each(func(_ int, box *goquery.Selection) {
		header := box.Find("div.Title").First()
		if header.Length() == 0 {
			return
		}
		link := header.Find("a").First()
		title := text(link)
		if title == "" || seen[title] {
			return
		}
		seen[title] = true

		dateText := text(header.Find("span.Date").First())
		var start time.Time
		var end *time.Time
		if m := slashRangePattern.FindStringSubmatch(dateText); m != nil {
			start, _ = utils.ParseDateTime(m[1], "1/2/2006")
			if t, ok := utils.ParseDateTime(m[2], "1/2/2006"); ok && t.After(start) {
				end = &t
			}
		} else if m := slashDatePattern.FindString(dateText); m != "" {
			start, _ = utils.ParseDateTime(m, "1/2/2006")
		}
		if start.IsZero() {
			return
		}

		var description []string
		box.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := text(p); t != "" && !strings.Contains(t, "Location:") {
				description = append(description, t)
			}
		})

		var location string
		box.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
			if !strings.Contains(div.Find("strong").First().Text(), "Location") {
				return true
			}
			location = strings.TrimSpace(strings.ReplaceAll(text(div), "Location:", ""))
			return false
		})

		var eventURL string
		if href := link.AttrOr("href", ""); strings.HasPrefix(href, "/") || strings.HasPrefix(href, "http") {
			eventURL = s.resolve(href)
		}

		if out, ok := s.event(ctx, v1.Event{
			Title:       title,
			Description: strings.Join(description, " "),
			URL:         eventURL,
			Start:       start,
			End:         end,
			Location:    location,
			Organizer:   "ASTMH",
		}); ok {
			events = append(events, out)
		}
	})
	return events, nil
}

// scrapeUSaskPCC reads Zoom registration links and the text block around them.
func scrapeUSaskPCC(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error) {
	var events []v1.Event
	seen := map[string]bool{}
	page.Find(`a[href*="zoom.us/meeting/register"]`).Each(func(_ int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		key := s.normalizedURL(href)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		parent := link.Parent()
		if parent.Length() == 0 {
			return
		}
		container := climb(parent, 5, func(sel *goquery.Selection) bool {
			return containsAny(sel.Text(), "January", "February", "March", "April")
		})
		content := commaSpacing.ReplaceAllString(utils.NormalizeWhitespace(blockText(container, " ")), ", ")

		loc := weekdayPattern.FindStringIndex(content)
		if loc == nil {
			return
		}
		title := strings.TrimSpace(content[:loc[0]])
		if len(title) <= 10 {
			return
		}

		m := weekdayDatePattern.FindStringSubmatch(content)
		if m == nil {
			return
		}
		start, ok := utils.ParseDateTime(m[1]+" "+m[2]+", "+m[3], "January 2, 2006")
		if !ok {
			return
		}
		if clock := clockPattern.FindString(content); clock != "" {
			start = utils.AtClock(start, clock)
		}

		description := usaskDescription
		if p := presentersPattern.FindStringSubmatch(content); p != nil {
			if presenter := utils.NormalizeWhitespace(p[1]); presenter != "" {
				description += " Presenters: " + presenter
			}
		}

		if out, ok := s.event(ctx, v1.Event{
			Title:       title,
			Description: description,
			URL:         href,
			Start:       start,
			Location:    "Online (Zoom)",
			Organizer:   "University of Saskatchewan",
		}); ok {
			events = append(events, out)
		}
	})
	return events, nil
}

// scrapeISRV collects event links from the calendar and parses each detail page.
func scrapeISRV(ctx api.ScrapeContext, s *Scraper, page *goquery.Document) ([]v1.Event, error) {
	var events []v1.Event
	for _, link := range isrvEventLinks(s, page) {
		if err := detailLimiter.Wait(ctx, link); err != nil {
			return events, err
		}
		resp, err := s.get(ctx, link)
		if err != nil {
			ctx.Warnf("failed to fetch %s: %v", link, err)
			continue
		}
		detail, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			ctx.Warnf("failed to parse %s: %v", link, err)
			continue
		}
		e, ok := parseISRVEvent(detail, link)
		if !ok {
			continue
		}
		if out, ok := s.event(ctx, e); ok {
			events = append(events, out)
		}
	}
	return events, nil
}

// isrvEventLinks returns detail page URLs on the listing's host, in page order.
func isrvEventLinks(s *Scraper, page *goquery.Document) []string {
	var links []string
	page.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if !strings.Contains(href, "/events-calendar/") || strings.Contains(href, "/page/") || strings.Contains(href, "?category=") {
			return
		}
		u, err := url.Parse(s.resolve(href))
		if err != nil || u.Host != s.base.Host {
			return
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "events-calendar" || parts[1] == "" {
			return
		}
		links = append(links, u.String())
	})
	return lo.Uniq(links)
}

func parseISRVEvent(page *goquery.Document, link string) (v1.Event, bool) {
	main := page.Find("main").First()
	if main.Length() == 0 {
		main = page.Find("article").First()
	}
	if main.Length() == 0 {
		main = page.Find("body").First()
	}
	if main.Length() == 0 {
		return v1.Event{}, false
	}
	content := blockText(main, " | ")

	title := text(page.Find("h1").First())
	if title == "" {
		title = strings.TrimSpace(strings.Split(text(page.Find("title").First()), " - ")[0])
	}
	if len(title) < 5 {
		return v1.Event{}, false
	}

	start, ok := isrvDate(content)
	if !ok {
		return v1.Event{}, false
	}
	if clock := meridiemPattern.FindString(content); clock != "" {
		start = utils.AtClock(start, clock)
	}

	e := v1.Event{
		Title:     title,
		URL:       link,
		Start:     start,
		Organizer: "ISRV",
	}
	if containsAny(strings.ToLower(content), "webinar", "online", "zoom") {
		e.Location = "Online"
	}
	page.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		t := strings.TrimSpace(p.Text())
		if len(t) > 50 && !boilerplatePattern.MatchString(t) {
			e.Description = utils.Cut(utils.NormalizeWhitespace(t), 500)
			return false
		}
		return true
	})
	return e, true
}

// isrvDate reads "28-30 January 2026", "28 January 2026" or "January 28, 2026".
// Ranges resolve to their first day.
func isrvDate(content string) (time.Time, bool) {
	if m := dayRangePattern.FindStringSubmatch(content); m != nil {
		return utils.ParseDateTime(m[2]+" "+m[1]+", "+m[3], "January 2, 2006")
	}
	if m := dayFirstPattern.FindStringSubmatch(content); m != nil {
		return utils.ParseDateTime(m[2]+" "+m[1]+", "+m[3], "January 2, 2006")
	}
	if m := monthFirstPattern.FindStringSubmatch(content); m != nil {
		return utils.ParseDateTime(m[1]+" "+m[2]+", "+m[3], "January 2, 2006")
	}
	return time.Time{}, false
}
