package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/robfig/cron/v3"

	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

var _ = ginkgo.Describe("Job", func() {
	ginkgo.It("skips a run while the previous one is in progress", func() {
		release := make(chan struct{})
		started := make(chan struct{})
		j := &Job{Name: "slow", Fn: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		}}

		done := make(chan bool)
		go func() { done <- j.Run(context.Background()) }()
		<-started

		Expect(j.Run(context.Background())).To(BeFalse())
		close(release)
		Expect(<-done).To(BeTrue())
	})

	ginkgo.It("remembers the last error", func() {
		j := &Job{Name: "failing", Fn: func(ctx context.Context) error { return errors.New("boom") }}
		Expect(j.LastError()).To(BeNil())
		Expect(j.Run(context.Background())).To(BeTrue())
		Expect(j.LastError()).To(MatchError("boom"))
	})

	ginkgo.It("rejects invalid schedules", func() {
		j := &Job{Name: "bad", Schedule: "not a schedule", Fn: func(ctx context.Context) error { return nil }}
		Expect(j.AddToScheduler(context.Background(), cron.New())).ToNot(Succeed())
	})
})

var _ = ginkgo.Describe("CleanupJobs", func() {
	ginkgo.It("removes old source runs and expired cache entries", func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store, err := db.Init(":memory:")
		Expect(err).ToNot(HaveOccurred())
		ginkgo.DeferCleanup(store.Close)
		ctx := context.Background()

		restore := utils.MockTime(now.AddDate(0, 0, -120))
		Expect(store.SkipRun(ctx, "old")).To(Succeed())
		restore()
		ginkgo.DeferCleanup(utils.MockTime(now))
		Expect(store.SkipRun(ctx, "new")).To(Succeed())
		Expect(store.PutHTTPCache(ctx, models.HTTPCacheEntry{URL: "https://stale", CachedAt: now.AddDate(0, 0, -30)})).To(Succeed())

		for _, j := range CleanupJobs(store) {
			Expect(j.Run(ctx)).To(BeTrue())
			Expect(j.LastError()).ToNot(HaveOccurred())
		}

		runs, err := store.RecentRuns(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].SourceID).To(Equal("new"))

		entry, err := store.GetHTTPCache(ctx, "https://stale")
		Expect(err).ToNot(HaveOccurred())
		Expect(entry).To(BeNil())
	})
})
