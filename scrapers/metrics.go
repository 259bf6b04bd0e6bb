package scrapers

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gid_seminars",
		Name:      "source_runs_total",
		Help:      "Source runs by terminal status",
	}, []string{"source", "status"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gid_seminars",
		Name:      "source_run_duration_seconds",
		Help:      "Time spent fetching and persisting one source",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"source"})

	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gid_seminars",
		Name:      "events_total",
		Help:      "Events processed by outcome (found, added, updated, removed)",
	}, []string{"source", "outcome"})
)

func init() {
	prometheus.MustRegister(runsTotal, runDuration, eventsTotal)
}

func observe(sourceID string, stats SourceStats) {
	eventsTotal.WithLabelValues(sourceID, "found").Add(float64(stats.Found))
	eventsTotal.WithLabelValues(sourceID, "added").Add(float64(stats.Added))
	eventsTotal.WithLabelValues(sourceID, "updated").Add(float64(stats.Updated))
	eventsTotal.WithLabelValues(sourceID, "removed").Add(float64(stats.Removed))
}
