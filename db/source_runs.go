package db

import (
	"context"
	"errors"

	"github.com/flanksource/commons/logger"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

// StartRun persists a new run record in the running state.
func (s *Store) StartRun(ctx context.Context, sourceID string) (*models.SourceRun, error) {
	run := models.NewSourceRun(sourceID, utils.NaiveNow())
	err := s.transaction(ctx, "start_run", func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun finalizes a run exactly once. Completing an already
// finalized run is an error. run is left untouched when the write fails.
func (s *Store) CompleteRun(ctx context.Context, run *models.SourceRun, status string) error {
	if run.IsFinal() {
		return &v1.StoreError{Op: "complete_run", Cause: pkgerrors.Errorf("run %s already completed with status %s", run.ID, run.Status)}
	}
	finished := *run
	finished.Finish(status, utils.NaiveNow())
	err := s.transaction(ctx, "complete_run", func(tx *gorm.DB) error {
		res := tx.Model(&models.SourceRun{}).Where("id = ? AND status = ?", run.ID, models.StatusRunning).
			Select("*").Omit("id", "source_id", "run_started_at").
			Updates(&finished)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.Errorf("run %s is not running", run.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*run = finished
	return nil
}

// SkipRun records a disabled source.
func (s *Store) SkipRun(ctx context.Context, sourceID string) error {
	now := utils.NaiveNow()
	run := models.NewSourceRun(sourceID, now)
	run.Finish(models.StatusSkipped, now)
	return s.transaction(ctx, "skip_run", func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
}

// LastSuccessfulRun returns nil when the source never succeeded.
func (s *Store) LastSuccessfulRun(ctx context.Context, sourceID string) (*models.SourceRun, error) {
	var run models.SourceRun
	err := s.read(ctx).Where("source_id = ? AND status = ?", sourceID, models.StatusSuccess).
		Order("run_completed_at DESC").Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &v1.StoreError{Op: "last_successful_run", Cause: err}
	}
	return &run, nil
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.SourceRun, error) {
	var runs []models.SourceRun
	if err := s.read(ctx).Order("run_started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, &v1.StoreError{Op: "recent_runs", Cause: err}
	}
	return runs, nil
}

// PersistRun finalizes a run, logging instead of failing when the
// bookkeeping write itself breaks.
func (s *Store) PersistRun(ctx context.Context, run *models.SourceRun, status string) {
	if err := s.CompleteRun(ctx, run, status); err != nil {
		logger.Errorf("[%s] failed to persist run %s: %v", run.SourceID, run.ID, err)
	}
}
