package models

import "time"

// HTTPCacheEntry holds the validators of the last response for a URL.
type HTTPCacheEntry struct {
	URL          string    `gorm:"primaryKey;column:url" json:"url"`
	ETag         string    `gorm:"column:etag" json:"etag,omitempty"`
	LastModified string    `gorm:"column:last_modified" json:"last_modified,omitempty"`
	ContentHash  string    `gorm:"column:content_hash" json:"content_hash,omitempty"`
	CachedAt     time.Time `gorm:"column:cached_at;not null" json:"cached_at"`
}

func (HTTPCacheEntry) TableName() string {
	return "http_cache"
}
