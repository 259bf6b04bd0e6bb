package generators

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

//go:embed templates/index.html
var templates embed.FS

var page = template.Must(template.ParseFS(templates, "templates/index.html"))

const (
	RepositoryURL = "https://github.com/dholab/gid-seminars"

	descriptionPreview = 200
	hideTitleLength    = 60
)

type pageView struct {
	Title         string
	GeneratedAt   string
	Total         int
	Sources       []string
	Categories    []string
	ICSFile       string
	JSONFile      string
	RepositoryURL string
	Upcoming      sectionView
	Past          sectionView
}

type sectionView struct {
	Key   string
	Title string
	Empty string
	Cards []cardView
	Days  []dayView
}

type dayView struct {
	Label string
	Cards []cardView
}

type cardView struct {
	Variant         string
	Section         string
	Source          string
	Category        string
	Access          string
	Search          string
	Date            string
	Time            string
	Timezone        string
	Title           string
	Description     string
	URL             string
	RegistrationURL string
	RecordingURL    string
	HideURL         string
}

// HTML writes the seminar page: upcoming seminars soonest first, then past
// seminars most recent first, each grouped by day.
func (g *Generator) HTML(ctx context.Context, path string) (Result, error) {
	events, err := g.events(ctx)
	if err != nil {
		return Result{}, err
	}
	data, upcoming, past, err := g.RenderHTML(events)
	if err != nil {
		return Result{}, err
	}
	if err := write(path, data); err != nil {
		return Result{}, err
	}
	g.logger().Infof("Generated HTML: %d upcoming, %d past -> %s", upcoming, past, path)
	return Result{Path: path, Events: len(events)}, nil
}

// RenderHTML renders an already filtered event list.
func (g *Generator) RenderHTML(events []v1.Event) ([]byte, int, int, error) {
	now := utils.NaiveNow()
	upcoming, past := lo.FilterReject(events, func(e v1.Event, _ int) bool { return !e.Start.Before(now) })
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Start.Before(upcoming[j].Start) })
	sort.SliceStable(past, func(i, j int) bool { return past[i].Start.After(past[j].Start) })

	sources := lo.Uniq(lo.Map(events, func(e v1.Event, _ int) string { return e.SourceID }))
	categories := lo.Uniq(lo.FilterMap(events, func(e v1.Event, _ int) (string, bool) { return e.Category, e.Category != "" }))
	sort.Strings(sources)
	sort.Strings(categories)

	view := pageView{
		Title:         g.Settings.Calendar.GetName(),
		GeneratedAt:   utils.Now().UTC().Format("2006-01-02 15:04 UTC"),
		Total:         len(events),
		Sources:       sources,
		Categories:    categories,
		ICSFile:       g.Settings.Output.ICS(),
		JSONFile:      g.Settings.Output.JSON(),
		RepositoryURL: RepositoryURL,
		Upcoming: section("upcoming", "Upcoming Seminars",
			fmt.Sprintf("No upcoming seminars in the next %d days.", g.Settings.TimeWindow.Ahead()), upcoming, now),
		Past: section("past", "Past Seminars (Recordings)",
			fmt.Sprintf("No past seminars in the last %d days.", g.Settings.TimeWindow.Behind()), past, now),
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, view); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), len(upcoming), len(past), nil
}

func section(key, title, empty string, events []v1.Event, now time.Time) sectionView {
	s := sectionView{Key: key, Title: title, Empty: empty}
	for _, e := range events {
		c := card(e, key, now)
		s.Cards = append(s.Cards, c)

		label := e.Start.Format("Monday, January 2, 2006")
		if n := len(s.Days); n > 0 && s.Days[n-1].Label == label {
			s.Days[n-1].Cards = append(s.Days[n-1].Cards, c)
			continue
		}
		s.Days = append(s.Days, dayView{Label: label, Cards: []cardView{c}})
	}
	return s
}

func card(e v1.Event, section string, now time.Time) cardView {
	variant := "upcoming"
	switch {
	case section == "past":
		variant = "past"
	case utils.StartOfDay(e.Start).Equal(utils.StartOfDay(now)):
		variant = "today"
	}

	c := cardView{
		Variant:         variant,
		Section:         section,
		Source:          e.SourceID,
		Category:        e.Category,
		Date:            e.Start.Format("Mon, Jan 02, 2006"),
		Time:            e.Start.Format("03:04 PM"),
		Timezone:        e.Timezone,
		Title:           e.Title,
		Description:     preview(e.Description),
		URL:             e.URL,
		RegistrationURL: e.RegistrationURL,
		RecordingURL:    e.RecordingURL,
		Search:          utils.NormalizeWhitespace(strings.Join([]string{e.Title, e.Description, e.Organizer}, " ")),
	}
	if e.AccessRestriction != "" && e.AccessRestriction != v1.AccessPublic {
		c.Access = string(e.AccessRestriction)
	}
	c.HideURL = hideURL(e, c.Date)
	return c
}

func preview(description string) string {
	if len(description) <= descriptionPreview {
		return description
	}
	return utils.Cut(description, descriptionPreview) + "..."
}

// hideURL opens a prefilled issue asking for the event to be excluded.
func hideURL(e v1.Event, date string) string {
	body := strings.Join([]string{
		"**Event to hide:**",
		"- Title: " + e.Title,
		"- URL: " + lo.CoalesceOrEmpty(e.URL, "N/A"),
		"- Source: " + e.SourceID,
		"- Date: " + date,
		"",
		"**Reason for hiding:**",
		"(Please describe why this event should be removed from the calendar)",
		"",
		"---",
		"*Submitted via the events page*",
	}, "\n")

	title := utils.Cut(strings.ReplaceAll(e.Title, `"`, "'"), hideTitleLength)
	query := url.Values{
		"title":  {"Hide Event: " + title},
		"labels": {"hide-event"},
		"body":   {body},
	}
	return RepositoryURL + "/issues/new?" + query.Encode()
}
