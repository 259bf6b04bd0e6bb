package db

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	v1 "github.com/flanksource/gid-seminars/api/v1"
)

// Store owns seminars, source runs and the http cache. Writes are
// serialized and each call runs in a single transaction.
type Store struct {
	db    *gorm.DB
	mu    sync.Mutex
	cache *cache.Cache
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		cache: cache.New(time.Hour, 2*time.Hour),
	}
}

// DB exposes the underlying connection for read-only callers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Transaction(fn); err != nil {
		return &v1.StoreError{Op: op, Cause: err}
	}
	return nil
}

func (s *Store) read(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
