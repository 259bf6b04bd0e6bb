package pipeline

import (
	"context"

	"github.com/flanksource/gid-seminars/jobs"
)

// Job runs the whole pipeline on the configured cron schedule.
func (p *Pipeline) Job() *jobs.Job {
	return &jobs.Job{
		Name:     "Pipeline",
		Schedule: p.Settings.Schedule.GetCron(),
		Fn: func(ctx context.Context) error {
			_, err := p.Run(ctx)
			return err
		},
	}
}
