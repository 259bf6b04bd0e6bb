package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/flanksource/gid-seminars/db/models"
)

// DeleteRunsBefore removes finalized run records that started before cutoff.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.transaction(ctx, "delete_runs", func(tx *gorm.DB) error {
		res := tx.Where("run_started_at < ? AND status <> ?", cutoff, models.StatusRunning).Delete(&models.SourceRun{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

// DeleteHTTPCacheBefore drops cache validators written before cutoff.
func (s *Store) DeleteHTTPCacheBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.transaction(ctx, "delete_http_cache", func(tx *gorm.DB) error {
		res := tx.Where("cached_at < ?", cutoff).Delete(&models.HTTPCacheEntry{})
		removed = res.RowsAffected
		return res.Error
	})
	if err == nil && removed > 0 {
		s.cache.Flush()
	}
	return removed, err
}
