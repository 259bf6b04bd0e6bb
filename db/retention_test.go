package db

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

var _ = Describe("Retention", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = newTestStore()
		ctx = context.Background()
	})

	It("deletes only finalized runs older than the cutoff", func() {
		restore := utils.MockTime(now.AddDate(0, 0, -100))
		Expect(store.SkipRun(ctx, "old")).To(Succeed())
		stuck, err := store.StartRun(ctx, "stuck")
		Expect(err).ToNot(HaveOccurred())
		restore()

		DeferCleanup(utils.MockTime(now))
		Expect(store.SkipRun(ctx, "recent")).To(Succeed())

		removed, err := store.DeleteRunsBefore(ctx, now.AddDate(0, 0, -90))
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(Equal(int64(1)))

		runs, err := store.RecentRuns(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs).To(HaveLen(2))
		Expect([]string{runs[0].SourceID, runs[1].SourceID}).To(ConsistOf("recent", stuck.SourceID))
	})

	It("expires http cache entries", func() {
		Expect(store.PutHTTPCache(ctx, models.HTTPCacheEntry{URL: "https://a", CachedAt: now.Add(-48 * time.Hour)})).To(Succeed())
		Expect(store.PutHTTPCache(ctx, models.HTTPCacheEntry{URL: "https://b", CachedAt: now})).To(Succeed())

		removed, err := store.DeleteHTTPCacheBefore(ctx, now.Add(-24*time.Hour))
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(Equal(int64(1)))

		entry, err := store.GetHTTPCache(ctx, "https://a")
		Expect(err).ToNot(HaveOccurred())
		Expect(entry).To(BeNil())
	})
})
