package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
)

func httpCacheKey(url string) string {
	return "http_cache:" + url
}

// GetHTTPCache returns nil when nothing is cached for url.
func (s *Store) GetHTTPCache(ctx context.Context, url string) (*models.HTTPCacheEntry, error) {
	if v, ok := s.cache.Get(httpCacheKey(url)); ok {
		entry := v.(models.HTTPCacheEntry)
		return &entry, nil
	}

	var entry models.HTTPCacheEntry
	err := s.read(ctx).Where("url = ?", url).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &v1.StoreError{Op: "get_http_cache", Cause: err}
	}
	s.cache.SetDefault(httpCacheKey(url), entry)
	return &entry, nil
}

// PutHTTPCache inserts or replaces the entry for its URL.
func (s *Store) PutHTTPCache(ctx context.Context, entry models.HTTPCacheEntry) error {
	err := s.transaction(ctx, "put_http_cache", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error
	})
	if err != nil {
		return err
	}
	s.cache.SetDefault(httpCacheKey(entry.URL), entry)
	return nil
}
