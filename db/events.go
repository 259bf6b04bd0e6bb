package db

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

// ChangeKind classifies the outcome of an upsert.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeUpdated   ChangeKind = "updated"
	ChangeUnchanged ChangeKind = "unchanged"
)

// Upsert inserts an unseen identity, rewrites a known identity whose
// change fingerprint differs, and leaves matching ones untouched.
func (s *Store) Upsert(ctx context.Context, e v1.Event) (bool, ChangeKind, error) {
	e.EnsureFingerprints()
	now := utils.NaiveNow()

	var isNew bool
	kind := ChangeUnchanged
	err := s.transaction(ctx, "upsert", func(tx *gorm.DB) error {
		var existing models.Event
		err := tx.Select("id", "checksum", "created_at").Where("id = ?", e.ID).Take(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrapf(err, "unable to lookup seminar %s", e.ID)
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.CreatedAt, e.UpdatedAt = now, now
			row, err := NewEventFromResult(e)
			if err != nil {
				return err
			}
			if err := tx.Create(&row).Error; err != nil {
				return pkgerrors.Wrapf(err, "failed to insert seminar %s", e.ID)
			}
			isNew, kind = true, ChangeAdded
			return nil
		}

		if existing.Checksum == e.Checksum {
			return nil
		}

		e.CreatedAt, e.UpdatedAt = existing.CreatedAt, now
		row, err := NewEventFromResult(e)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Event{}).Where("id = ?", e.ID).
			Select("*").Omit("id", "source_id", "created_at").
			Updates(&row).Error; err != nil {
			return pkgerrors.Wrapf(err, "failed to update seminar %s", e.ID)
		}
		kind = ChangeUpdated
		return nil
	})
	if err != nil {
		return false, "", err
	}
	return isNew, kind, nil
}

// DeleteStale removes every seminar of sourceID whose id is not in ids.
// An empty ids list deletes nothing: a source that returned nothing is
// treated as a transient failure, not as "everything is gone".
func (s *Store) DeleteStale(ctx context.Context, sourceID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed int64
	err := s.transaction(ctx, "delete_stale", func(tx *gorm.DB) error {
		res := tx.Where("source_id = ? AND id NOT IN ?", sourceID, lo.Uniq(ids)).Delete(&models.Event{})
		if res.Error != nil {
			return pkgerrors.Wrapf(res.Error, "failed to delete stale seminars for %s", sourceID)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// WindowQuery selects seminars starting between now-DaysBehind and now+DaysAhead.
type WindowQuery struct {
	DaysBehind int
	DaysAhead  int
	SourceIDs  []string
	Categories []string
}

// QueryWindow evaluates the window against the current time, so output
// rolls forward on every call without refetching.
func (s *Store) QueryWindow(ctx context.Context, q WindowQuery) ([]v1.Event, error) {
	now := utils.NaiveNow()
	from := now.Add(-time.Duration(q.DaysBehind) * 24 * time.Hour)
	to := now.Add(time.Duration(q.DaysAhead) * 24 * time.Hour)

	tx := s.read(ctx).Where("start_datetime >= ? AND start_datetime <= ?", from, to)
	if len(q.SourceIDs) > 0 {
		tx = tx.Where("source_id IN ?", q.SourceIDs)
	}
	if len(q.Categories) > 0 {
		tx = tx.Where("category IN ?", q.Categories)
	}

	var rows []models.Event
	if err := tx.Order("start_datetime ASC").Find(&rows).Error; err != nil {
		return nil, &v1.StoreError{Op: "query_window", Cause: err}
	}
	return lo.Map(rows, func(r models.Event, _ int) v1.Event { return ToEvent(r) }), nil
}

// GetEvent returns nil when the id is unknown.
func (s *Store) GetEvent(ctx context.Context, id string) (*v1.Event, error) {
	var row models.Event
	err := s.read(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &v1.StoreError{Op: "get_event", Cause: err}
	}
	e := ToEvent(row)
	return &e, nil
}

func (s *Store) GetBySource(ctx context.Context, sourceID string) ([]v1.Event, error) {
	var rows []models.Event
	if err := s.read(ctx).Where("source_id = ?", sourceID).Order("start_datetime").Find(&rows).Error; err != nil {
		return nil, &v1.StoreError{Op: "get_by_source", Cause: err}
	}
	return lo.Map(rows, func(r models.Event, _ int) v1.Event { return ToEvent(r) }), nil
}

// Statistics summarizes the seminars table.
type Statistics struct {
	TotalSeminars int64            `json:"total_seminars" yaml:"total_seminars"`
	BySource      map[string]int64 `json:"by_source" yaml:"by_source"`
	ByCategory    map[string]int64 `json:"by_category" yaml:"by_category"`
}

type groupCount struct {
	Name  *string
	Count int64
}

func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{BySource: map[string]int64{}, ByCategory: map[string]int64{}}
	if err := s.read(ctx).Model(&models.Event{}).Count(&stats.TotalSeminars).Error; err != nil {
		return nil, &v1.StoreError{Op: "statistics", Cause: err}
	}

	var bySource []groupCount
	if err := s.read(ctx).Model(&models.Event{}).Select("source_id AS name, COUNT(*) AS count").Group("source_id").Scan(&bySource).Error; err != nil {
		return nil, &v1.StoreError{Op: "statistics", Cause: err}
	}
	for _, g := range bySource {
		stats.BySource[lo.FromPtr(g.Name)] = g.Count
	}

	var byCategory []groupCount
	if err := s.read(ctx).Model(&models.Event{}).Select("category AS name, COUNT(*) AS count").Group("category").Scan(&byCategory).Error; err != nil {
		return nil, &v1.StoreError{Op: "statistics", Cause: err}
	}
	for _, g := range byCategory {
		key := lo.FromPtr(g.Name)
		if key == "" {
			key = "Uncategorized"
		}
		stats.ByCategory[key] += g.Count
	}
	return stats, nil
}
