package db

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

var _ = Describe("SourceRuns", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		DeferCleanup(utils.MockTime(now))
		store = newTestStore()
		ctx = context.Background()
	})

	It("finalizes a run exactly once", func() {
		run, err := store.StartRun(ctx, "nih")
		Expect(err).ToNot(HaveOccurred())
		Expect(run.Status).To(Equal(models.StatusRunning))

		DeferCleanup(utils.MockTime(now.Add(3 * time.Second)))
		run.EventsFound = 4
		run.EventsAdded = 2
		Expect(store.CompleteRun(ctx, run, models.StatusSuccess)).To(Succeed())
		Expect(*run.DurationSeconds).To(BeNumerically("==", 3))

		Expect(store.CompleteRun(ctx, run, models.StatusError)).ToNot(Succeed())

		last, err := store.LastSuccessfulRun(ctx, "nih")
		Expect(err).ToNot(HaveOccurred())
		Expect(last).ToNot(BeNil())
		Expect(last.ID).To(Equal(run.ID))
		Expect(last.EventsFound).To(Equal(4))
		Expect(last.EventsAdded).To(Equal(2))
		Expect(last.Status).To(Equal(models.StatusSuccess))
	})

	It("records errors without marking the source successful", func() {
		run, err := store.StartRun(ctx, "who")
		Expect(err).ToNot(HaveOccurred())
		run.ErrorMessage = "Request failed after 3 attempts"
		Expect(store.CompleteRun(ctx, run, models.StatusError)).To(Succeed())

		last, err := store.LastSuccessfulRun(ctx, "who")
		Expect(err).ToNot(HaveOccurred())
		Expect(last).To(BeNil())

		runs, err := store.RecentRuns(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].ErrorMessage).To(Equal("Request failed after 3 attempts"))
	})

	It("keeps a run open when the completing write fails", func() {
		run, err := store.StartRun(ctx, "cdc")
		Expect(err).ToNot(HaveOccurred())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		Expect(store.CompleteRun(cancelled, run, models.StatusSuccess)).ToNot(Succeed())
		Expect(run.Status).To(Equal(models.StatusRunning))
		Expect(run.IsFinal()).To(BeFalse())

		run.ErrorMessage = "write failed"
		store.PersistRun(ctx, run, models.StatusError)
		Expect(run.Status).To(Equal(models.StatusError))

		runs, err := store.RecentRuns(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Status).To(Equal(models.StatusError))
		Expect(runs[0].ErrorMessage).To(Equal("write failed"))
		Expect(runs[0].RunCompletedAt).ToNot(BeNil())
	})

	It("records skipped sources as final", func() {
		Expect(store.SkipRun(ctx, "disabled")).To(Succeed())

		runs, err := store.RecentRuns(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Status).To(Equal(models.StatusSkipped))
		Expect(runs[0].IsFinal()).To(BeTrue())
	})
})

var _ = Describe("HTTPCache", func() {
	It("stores and replaces validators per url", func() {
		store := newTestStore()
		ctx := context.Background()

		entry, err := store.GetHTTPCache(ctx, "https://example.org/feed")
		Expect(err).ToNot(HaveOccurred())
		Expect(entry).To(BeNil())

		Expect(store.PutHTTPCache(ctx, models.HTTPCacheEntry{URL: "https://example.org/feed", ETag: `"v1"`, CachedAt: now})).To(Succeed())
		Expect(store.PutHTTPCache(ctx, models.HTTPCacheEntry{URL: "https://example.org/feed", ETag: `"v2"`, ContentHash: "abc", CachedAt: now})).To(Succeed())

		entry, err = store.GetHTTPCache(ctx, "https://example.org/feed")
		Expect(err).ToNot(HaveOccurred())
		Expect(entry.ETag).To(Equal(`"v2"`))
		Expect(entry.ContentHash).To(Equal("abc"))

		var count int64
		Expect(store.DB().Model(&models.HTTPCacheEntry{}).Count(&count).Error).To(Succeed())
		Expect(count).To(Equal(int64(1)))
	})
})
