package jobs

import (
	"context"
	"time"

	"github.com/flanksource/commons/logger"

	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/utils"
)

const (
	DefaultSourceRunRetentionDays = 90
	DefaultHTTPCacheRetention     = 7 * 24 * time.Hour
)

var (
	SourceRunRetentionDays int
	HTTPCacheRetention     time.Duration
)

// CleanupJobs prunes bookkeeping tables that otherwise grow forever.
func CleanupJobs(store *db.Store) []*Job {
	return []*Job{
		{
			Name:     "CleanupSourceRuns",
			Schedule: "@every 24h",
			Fn: func(ctx context.Context) error {
				days := SourceRunRetentionDays
				if days <= 0 {
					days = DefaultSourceRunRetentionDays
				}
				removed, err := store.DeleteRunsBefore(ctx, utils.NaiveNow().AddDate(0, 0, -days))
				if removed > 0 {
					logger.Infof("Deleted %d source runs older than %d days", removed, days)
				}
				return err
			},
		},
		{
			Name:     "CleanupHTTPCache",
			Schedule: "@every 24h",
			Fn: func(ctx context.Context) error {
				retention := HTTPCacheRetention
				if retention <= 0 {
					retention = DefaultHTTPCacheRetention
				}
				removed, err := store.DeleteHTTPCacheBefore(ctx, utils.NaiveNow().Add(-retention))
				if removed > 0 {
					logger.Infof("Deleted %d expired http cache entries", removed)
				}
				return err
			},
		},
	}
}
