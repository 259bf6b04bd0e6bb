package api

import v1 "github.com/flanksource/gid-seminars/api/v1"

// Source converts one upstream into candidate events. Implementations
// must not write to the store; item level problems are logged and
// skipped, request failures are returned.
type Source interface {
	ID() string
	Fetch(ctx ScrapeContext) ([]v1.Event, error)
}

// SourceFactory builds a source from its configuration and fails fast on
// missing settings or credentials.
type SourceFactory func(cfg v1.SourceConfig) (Source, error)
