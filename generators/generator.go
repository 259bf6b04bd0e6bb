package generators

import (
	"context"
	"os"
	"path/filepath"

	"github.com/flanksource/commons/logger"
	"github.com/samber/oops"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/filters"
)

// Result describes one rendered file.
type Result struct {
	Path   string `json:"path"`
	Events int    `json:"events"`
}

// Generator renders the windowed, filtered seminar list into output files.
type Generator struct {
	Store    *db.Store
	Settings v1.Settings
	Filters  filters.Chain
	Log      logger.Logger
}

func New(store *db.Store, settings v1.Settings, chain filters.Chain) *Generator {
	return &Generator{Store: store, Settings: settings, Filters: chain}
}

func (g *Generator) logger() logger.Logger {
	if g.Log == nil {
		return logger.StandardLogger()
	}
	return g.Log
}

// events runs the window query and then the filter chain.
func (g *Generator) events(ctx context.Context) ([]v1.Event, error) {
	events, err := g.Store.QueryWindow(ctx, db.WindowQuery{
		DaysBehind: g.Settings.TimeWindow.Behind(),
		DaysAhead:  g.Settings.TimeWindow.Ahead(),
	})
	if err != nil {
		return nil, err
	}
	return g.Filters.Apply(events), nil
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oops.In("generators").With("path", path).Wrapf(err, "failed to create output directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return oops.In("generators").With("path", path).Wrapf(err, "failed to write output")
	}
	return nil
}

// All renders every output into the configured directory, keyed by format.
func (g *Generator) All(ctx context.Context) (map[string]Result, error) {
	out := g.Settings.Output
	results := map[string]Result{}

	for _, r := range []struct {
		format string
		name   string
		render func(context.Context, string) (Result, error)
	}{
		{"ics", out.ICS(), g.ICS},
		{"json", out.JSON(), g.JSON},
		{"html", out.HTML(), g.HTML},
	} {
		result, err := r.render(ctx, filepath.Join(out.Dir(), r.name))
		if err != nil {
			return results, err
		}
		results[r.format] = result
	}
	return results, nil
}
