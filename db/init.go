package db

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/commons/logger"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flanksource/gid-seminars/db/models"
)

// Path of the sqlite database, overridden by settings or DB_PATH.
var Path string

// Flags ...
func Flags(flags *pflag.FlagSet) {
	flags.StringVar(&Path, "db", os.Getenv("DB_PATH"), "Path to the sqlite database (defaults to database.path in settings)")
}

// Init opens (creating if needed) the sqlite database and migrates the schema.
// Use ":memory:" for a throwaway database.
func Init(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory for %s", path)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.Event{}, &models.SourceRun{}, &models.HTTPCacheEntry{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return NewStore(db), nil
}

// MustInit initializes the database or fatally exits
func MustInit(path string) *Store {
	store, err := Init(path)
	if err != nil {
		logger.Fatalf("Failed to initialize db: %v", err.Error())
	}
	return store
}
