package generators

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/samber/lo"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

const (
	feedTitle       = "GID Seminars Feed"
	feedDescription = "Aggregated seminars and webinars for Global Infectious Disease research"
)

type Feed struct {
	Metadata FeedMetadata `json:"metadata"`
	Events   []FeedEvent  `json:"events"`
}

type FeedMetadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	GeneratedAt string         `json:"generated_at"`
	TimeWindow  FeedTimeWindow `json:"time_window"`
	TotalEvents int            `json:"total_events"`
	Sources     []string       `json:"sources"`
	Categories  []string       `json:"categories"`
}

type FeedTimeWindow struct {
	DaysBehind int `json:"days_behind"`
	DaysAhead  int `json:"days_ahead"`
}

// FeedEvent is the public shape of a seminar. Empty optional fields are
// written as null.
type FeedEvent struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       *string  `json:"description"`
	URL               *string  `json:"url"`
	StartDatetime     string   `json:"start_datetime"`
	EndDatetime       *string  `json:"end_datetime"`
	Timezone          string   `json:"timezone"`
	Location          *string  `json:"location"`
	Organizer         *string  `json:"organizer"`
	Source            string   `json:"source"`
	Category          *string  `json:"category"`
	Tags              []string `json:"tags"`
	AccessRestriction string   `json:"access_restriction"`
	RegistrationURL   *string  `json:"registration_url"`
	RecordingURL      *string  `json:"recording_url"`
}

func NewFeedEvent(e v1.Event) FeedEvent {
	var end *string
	if e.End != nil && !e.End.IsZero() {
		end = lo.ToPtr(utils.ISOFormat(*e.End))
	}
	return FeedEvent{
		ID:                e.ID,
		Title:             e.Title,
		Description:       lo.EmptyableToPtr(e.Description),
		URL:               lo.EmptyableToPtr(e.URL),
		StartDatetime:     utils.ISOFormat(e.Start),
		EndDatetime:       end,
		Timezone:          e.Timezone,
		Location:          lo.EmptyableToPtr(e.Location),
		Organizer:         lo.EmptyableToPtr(e.Organizer),
		Source:            e.SourceID,
		Category:          lo.EmptyableToPtr(e.Category),
		Tags:              lo.Ternary(e.Tags == nil, []string{}, e.Tags),
		AccessRestriction: string(e.AccessRestriction),
		RegistrationURL:   lo.EmptyableToPtr(e.RegistrationURL),
		RecordingURL:      lo.EmptyableToPtr(e.RecordingURL),
	}
}

// JSON writes the feed: a metadata block followed by the event list.
func (g *Generator) JSON(ctx context.Context, path string) (Result, error) {
	events, err := g.events(ctx)
	if err != nil {
		return Result{}, err
	}
	stats, err := g.Store.Statistics(ctx)
	if err != nil {
		return Result{}, err
	}

	feed := Feed{
		Metadata: FeedMetadata{
			Title:       feedTitle,
			Description: feedDescription,
			GeneratedAt: utils.ISOFormat(utils.NaiveNow()) + "Z",
			TimeWindow: FeedTimeWindow{
				DaysBehind: g.Settings.TimeWindow.Behind(),
				DaysAhead:  g.Settings.TimeWindow.Ahead(),
			},
			TotalEvents: len(events),
			Sources:     sortedKeys(stats.BySource),
			Categories:  sortedKeys(stats.ByCategory),
		},
		Events: lo.Map(events, func(e v1.Event, _ int) FeedEvent { return NewFeedEvent(e) }),
	}

	data, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return Result{}, err
	}
	if err := write(path, data); err != nil {
		return Result{}, err
	}
	g.logger().Infof("Generated JSON with %d events: %s", len(events), path)
	return Result{Path: path, Events: len(events)}, nil
}

func sortedKeys(m map[string]int64) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
