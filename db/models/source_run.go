package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// SourceRun records one execution of one source.
type SourceRun struct {
	ID              uuid.UUID  `gorm:"primaryKey;column:id" json:"id" yaml:"id"`
	SourceID        string     `gorm:"column:source_id;not null;index:idx_source_runs_source" json:"source_id" yaml:"source_id"`
	RunStartedAt    time.Time  `gorm:"column:run_started_at;not null" json:"run_started_at" yaml:"run_started_at"`
	RunCompletedAt  *time.Time `gorm:"column:run_completed_at" json:"run_completed_at,omitempty" yaml:"run_completed_at,omitempty"`
	Status          string     `gorm:"column:status;not null" json:"status" yaml:"status"`
	EventsFound     int        `gorm:"column:events_found;default:0" json:"events_found" yaml:"events_found"`
	EventsAdded     int        `gorm:"column:events_added;default:0" json:"events_added" yaml:"events_added"`
	EventsUpdated   int        `gorm:"column:events_updated;default:0" json:"events_updated" yaml:"events_updated"`
	EventsRemoved   int        `gorm:"column:events_removed;default:0" json:"events_removed" yaml:"events_removed"`
	ETag            string     `gorm:"column:etag" json:"etag,omitempty" yaml:"etag,omitempty"`
	LastModified    string     `gorm:"column:last_modified" json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	ContentHash     string     `gorm:"column:content_hash" json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	ErrorMessage    string     `gorm:"column:error_message" json:"error_message,omitempty" yaml:"error_message,omitempty"`
	DurationSeconds *float64   `gorm:"column:duration_seconds" json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
}

func (SourceRun) TableName() string {
	return "source_runs"
}

func NewSourceRun(sourceID string, startedAt time.Time) *SourceRun {
	return &SourceRun{
		ID:           uuid.New(),
		SourceID:     sourceID,
		RunStartedAt: startedAt,
		Status:       StatusRunning,
	}
}

// Finish sets the terminal status, completion time and duration.
func (r *SourceRun) Finish(status string, completedAt time.Time) {
	r.Status = status
	r.RunCompletedAt = &completedAt
	d := completedAt.Sub(r.RunStartedAt).Seconds()
	r.DurationSeconds = &d
}

func (r SourceRun) IsFinal() bool {
	return r.RunCompletedAt != nil && r.Status != StatusRunning
}
