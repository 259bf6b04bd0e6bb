package scrapers

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/scrapers/bluesky"
	"github.com/flanksource/gid-seminars/scrapers/conference"
	"github.com/flanksource/gid-seminars/scrapers/html"
	"github.com/flanksource/gid-seminars/scrapers/ical"
	"github.com/flanksource/gid-seminars/scrapers/manual"
	"github.com/flanksource/gid-seminars/scrapers/podcast"
	"github.com/flanksource/gid-seminars/scrapers/rss"
	"github.com/flanksource/gid-seminars/scrapers/who"
)

// All maps a source `type` to the factory that builds it.
var All = map[string]api.SourceFactory{
	"rss":        rss.New,
	"ical":       ical.New,
	"manual":     manual.New,
	"bluesky":    bluesky.New,
	"scraper":    html.New,
	"podcast":    podcast.New,
	"conference": conference.New,
	"who":        who.New,
}

// Types lists the registered source types.
func Types() []string {
	types := lo.Keys(All)
	sort.Strings(types)
	return types
}

// NewSource builds the adapter for a source configuration.
func NewSource(config v1.SourceConfig) (api.Source, error) {
	factory, ok := All[config.GetType()]
	if !ok {
		return nil, &v1.ConfigurationError{SourceID: config.ID, Message: fmt.Sprintf("unknown source type %q", config.GetType())}
	}
	return factory(config)
}
