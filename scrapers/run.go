package scrapers

import (
	"context"

	"github.com/flanksource/commons/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

var tracer = otel.Tracer("github.com/flanksource/gid-seminars/scrapers")

// SourceStats counts what one run did to the store.
type SourceStats struct {
	Found   int `json:"found"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Runner executes single sources against a store and records a run for each.
type Runner struct {
	Store   *db.Store
	HTTP    v1.HTTPConfig
	BaseDir string
	Log     logger.Logger
}

func (r *Runner) logger() logger.Logger {
	if r.Log == nil {
		return logger.StandardLogger()
	}
	return r.Log
}

// RunSource fetches one source, upserts what it returned and prunes events
// that disappeared upstream. A disabled source only records a skipped run.
// On failure the run is finalized with the error message and the error is
// returned.
func (r *Runner) RunSource(ctx context.Context, config v1.SourceConfig, source api.Source) (SourceStats, error) {
	log := r.logger()
	if !config.IsEnabled() {
		log.Debugf("[%s] source is disabled", config.ID)
		runsTotal.WithLabelValues(config.ID, models.StatusSkipped).Inc()
		return SourceStats{}, r.Store.SkipRun(ctx, config.ID)
	}

	ctx, span := tracer.Start(ctx, "RunSource", trace.WithAttributes(
		attribute.String("source.id", config.ID),
		attribute.String("source.type", config.GetType()),
	))
	defer span.End()

	run, err := r.Store.StartRun(ctx, config.ID)
	if err != nil {
		span.RecordError(err)
		return SourceStats{}, err
	}

	client := httprequest.NewClient(config.ID, r.HTTP, r.Store, log)
	sc := api.NewScrapeContext(ctx, log).
		WithSource(config).
		WithHTTP(client).
		WithBaseDir(r.BaseDir)

	sc.Infof("collecting %s", config.DisplayName())
	timer := prometheus.NewTimer(runDuration.WithLabelValues(config.ID))
	mem := utils.NewMemoryTimer()
	stats, err := r.ingest(sc, source)
	timer.ObserveDuration()

	run.EventsFound = stats.Found
	run.EventsAdded = stats.Added
	run.EventsUpdated = stats.Updated
	run.EventsRemoved = stats.Removed
	if primary := client.Primary(); primary != nil {
		run.ETag = primary.ETag
		run.LastModified = primary.LastModified
		run.ContentHash = primary.ContentHash
	}

	if err != nil {
		sc.Errorf("collection failed: %v", err)
		run.ErrorMessage = err.Error()
		r.Store.PersistRun(ctx, run, models.StatusError)
		runsTotal.WithLabelValues(config.ID, models.StatusError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}

	if err := r.Store.CompleteRun(ctx, run, models.StatusSuccess); err != nil {
		sc.Errorf("failed to record successful run: %v", err)
		run.ErrorMessage = err.Error()
		r.Store.PersistRun(context.WithoutCancel(ctx), run, models.StatusError)
		runsTotal.WithLabelValues(config.ID, models.StatusError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}
	runsTotal.WithLabelValues(config.ID, models.StatusSuccess).Inc()
	observe(config.ID, stats)
	span.SetAttributes(
		attribute.Int("events.found", stats.Found),
		attribute.Int("events.added", stats.Added),
		attribute.Int("events.updated", stats.Updated),
		attribute.Int("events.removed", stats.Removed),
	)
	sc.Infof("found=%d added=%d updated=%d removed=%d in %s", stats.Found, stats.Added, stats.Updated, stats.Removed, mem.End())
	return stats, nil
}

func (r *Runner) ingest(ctx api.ScrapeContext, source api.Source) (SourceStats, error) {
	events, err := source.Fetch(ctx)
	if err != nil {
		return SourceStats{}, err
	}

	stats := SourceStats{Found: len(events)}
	seen := make([]string, 0, len(events))
	for _, e := range events {
		e.EnsureFingerprints()
		_, kind, err := r.Store.Upsert(ctx, e)
		if err != nil {
			return stats, err
		}
		seen = append(seen, e.ID)
		switch kind {
		case db.ChangeAdded:
			stats.Added++
		case db.ChangeUpdated:
			stats.Updated++
		}
	}

	stats.Removed, err = DeleteStaleEvents(ctx, r.Store, source.ID(), seen)
	return stats, err
}
