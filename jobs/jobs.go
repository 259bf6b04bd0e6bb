package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/robfig/cron/v3"
)

var FuncScheduler = cron.New()

// Job is a named function run on a cron schedule. A job never overlaps
// with itself: a tick that arrives while the previous run is still going
// is skipped.
type Job struct {
	Name     string
	Schedule string
	RunNow   bool
	Fn       func(ctx context.Context) error

	running atomic.Bool
	lastErr atomic.Value
}

// Run executes the job once and reports whether it actually ran.
func (j *Job) Run(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		logger.Warnf("[%s] previous run still in progress, skipping", j.Name)
		return false
	}
	defer j.running.Store(false)

	start := time.Now()
	err := j.Fn(ctx)
	j.lastErr.Store(errorHolder{err})
	if err != nil {
		logger.Errorf("[%s] failed after %s: %v", j.Name, time.Since(start).Round(time.Millisecond), err)
		return true
	}
	logger.Infof("[%s] completed in %s", j.Name, time.Since(start).Round(time.Millisecond))
	return true
}

// LastError is the error of the most recent run, nil when it succeeded or never ran.
func (j *Job) LastError() error {
	if v, ok := j.lastErr.Load().(errorHolder); ok {
		return v.err
	}
	return nil
}

type errorHolder struct{ err error }

func (j *Job) AddToScheduler(ctx context.Context, scheduler *cron.Cron) error {
	if _, err := scheduler.AddFunc(j.Schedule, func() { j.Run(ctx) }); err != nil {
		return err
	}
	logger.Infof("[%s] scheduled %s", j.Name, j.Schedule)
	if j.RunNow {
		go j.Run(ctx)
	}
	return nil
}

// ScheduleJobs registers the jobs and starts the scheduler.
func ScheduleJobs(ctx context.Context, jobs ...*Job) error {
	for _, j := range jobs {
		if err := j.AddToScheduler(ctx, FuncScheduler); err != nil {
			return err
		}
	}
	FuncScheduler.Start()
	return nil
}

func Stop() {
	<-FuncScheduler.Stop().Done()
}
