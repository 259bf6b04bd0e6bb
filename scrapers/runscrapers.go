package scrapers

import (
	"context"
	"sync"

	"github.com/flanksource/commons/logger"
	"golang.org/x/sync/errgroup"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
)

// Outcome is the result of one source within a collection.
type Outcome struct {
	Status string      `json:"status"`
	Stats  SourceStats `json:"stats"`
	Error  string      `json:"error,omitempty"`
}

// Report maps source ids to their outcome. Order keeps the configuration order.
type Report struct {
	Outcomes map[string]Outcome `json:"outcomes"`
	Order    []string           `json:"-"`
}

// Summary totals a report. Event counts only include successful sources.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Found     int `json:"found"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
}

func (r Report) Summary() Summary {
	var s Summary
	for _, o := range r.Outcomes {
		switch o.Status {
		case models.StatusSuccess:
			s.Succeeded++
			s.Found += o.Stats.Found
			s.Added += o.Stats.Added
			s.Updated += o.Stats.Updated
			s.Removed += o.Stats.Removed
		case models.StatusError:
			s.Failed++
		case models.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Failed is true only when no source succeeded.
func (r Report) Failed() bool {
	return r.Summary().Succeeded == 0
}

// Collector runs every configured source, isolating failures so one broken
// upstream never stops the others.
type Collector struct {
	Runner *Runner

	// Concurrency bounds how many sources run at once; values below 2 run
	// sources one after another.
	Concurrency int

	// Factories defaults to All.
	Factories map[string]api.SourceFactory
	Log       logger.Logger
}

func (c *Collector) logger() logger.Logger {
	if c.Log == nil {
		return logger.StandardLogger()
	}
	return c.Log
}

type job struct {
	config v1.SourceConfig
	source api.Source
}

// build constructs adapters for the enabled sources. Unknown types and
// construction failures are logged and left out of the report.
func (c *Collector) build(configs []v1.SourceConfig) []job {
	factories := c.Factories
	if factories == nil {
		factories = All
	}
	log := c.logger()

	var jobs []job
	for _, config := range configs {
		if !config.IsEnabled() {
			jobs = append(jobs, job{config: config})
			continue
		}
		factory, ok := factories[config.GetType()]
		if !ok {
			log.Warnf("[%s] unknown source type %q", config.ID, config.GetType())
			continue
		}
		source, err := factory(config)
		if err != nil {
			log.Errorf("[%s] failed to initialize source: %v", config.ID, err)
			continue
		}
		jobs = append(jobs, job{config: config, source: source})
	}
	return jobs
}

// Collect runs each source at most once and reports what happened to each.
func (c *Collector) Collect(ctx context.Context, configs []v1.SourceConfig) Report {
	jobs := c.build(configs)
	report := Report{Outcomes: make(map[string]Outcome, len(jobs))}
	for _, j := range jobs {
		report.Order = append(report.Order, j.config.ID)
	}

	limit := c.Concurrency
	if limit < 1 {
		limit = 1
	}
	if limit > len(jobs) && len(jobs) > 0 {
		limit = len(jobs)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	log := c.logger()
	log.Infof("Collecting from %d source(s)", len(jobs))

	for _, j := range jobs {
		g.Go(func() error {
			outcome := c.run(gctx, j)
			mu.Lock()
			report.Outcomes[j.config.ID] = outcome
			mu.Unlock()
			// failures are recorded in the report, never returned, so the group keeps going
			return nil
		})
	}
	_ = g.Wait()

	s := report.Summary()
	log.Infof("Collection summary: succeeded=%d failed=%d skipped=%d found=%d added=%d updated=%d removed=%d",
		s.Succeeded, s.Failed, s.Skipped, s.Found, s.Added, s.Updated, s.Removed)
	return report
}

func (c *Collector) run(ctx context.Context, j job) Outcome {
	if !j.config.IsEnabled() {
		if _, err := c.Runner.RunSource(ctx, j.config, nil); err != nil {
			c.logger().Warnf("[%s] failed to record skipped run: %v", j.config.ID, err)
		}
		return Outcome{Status: models.StatusSkipped}
	}

	stats, err := c.Runner.RunSource(ctx, j.config, j.source)
	if err != nil {
		return Outcome{Status: models.StatusError, Stats: stats, Error: err.Error()}
	}
	return Outcome{Status: models.StatusSuccess, Stats: stats}
}
