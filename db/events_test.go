package db

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seminar(sourceID, title string, start time.Time) v1.Event {
	e, err := v1.NewEvent(v1.Event{
		SourceID:    sourceID,
		Title:       title,
		Description: "About " + title,
		URL:         "https://example.org/" + title,
		Start:       start,
		Category:    "Virology",
		Tags:        []string{"hiv"},
	})
	Expect(err).ToNot(HaveOccurred())
	return *e
}

var _ = Describe("Events", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		DeferCleanup(utils.MockTime(now))
		store = newTestStore()
		ctx = context.Background()
	})

	Describe("Upsert", func() {
		It("adds, then reports unchanged on an identical second upsert", func() {
			e := seminar("nih", "grand-rounds", now.AddDate(0, 0, 3))

			isNew, kind, err := store.Upsert(ctx, e)
			Expect(err).ToNot(HaveOccurred())
			Expect(isNew).To(BeTrue())
			Expect(kind).To(Equal(ChangeAdded))

			before, err := store.GetEvent(ctx, e.ID)
			Expect(err).ToNot(HaveOccurred())

			isNew, kind, err = store.Upsert(ctx, e)
			Expect(err).ToNot(HaveOccurred())
			Expect(isNew).To(BeFalse())
			Expect(kind).To(Equal(ChangeUnchanged))

			after, err := store.GetEvent(ctx, e.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("updates content but keeps created_at when the change fingerprint differs", func() {
			e := seminar("nih", "grand-rounds", now.AddDate(0, 0, 3))
			_, _, err := store.Upsert(ctx, e)
			Expect(err).ToNot(HaveOccurred())
			original, _ := store.GetEvent(ctx, e.ID)

			later := now.Add(2 * time.Hour)
			DeferCleanup(utils.MockTime(later))

			changed := e
			changed.Description = "A new abstract"
			changed.Checksum = ""
			changed.EnsureFingerprints()
			Expect(changed.ID).To(Equal(e.ID))

			isNew, kind, err := store.Upsert(ctx, changed)
			Expect(err).ToNot(HaveOccurred())
			Expect(isNew).To(BeFalse())
			Expect(kind).To(Equal(ChangeUpdated))

			stored, err := store.GetEvent(ctx, e.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Description).To(Equal("A new abstract"))
			Expect(stored.Checksum).To(Equal(changed.Checksum))
			Expect(stored.CreatedAt).To(Equal(original.CreatedAt))
			Expect(stored.UpdatedAt).To(Equal(later))
		})

		It("treats a category-only change as unchanged", func() {
			e := seminar("nih", "grand-rounds", now.AddDate(0, 0, 3))
			_, _, err := store.Upsert(ctx, e)
			Expect(err).ToNot(HaveOccurred())

			recategorized := e
			recategorized.Category = "Bacteriology"
			recategorized.Tags = []string{"tb"}
			_, kind, err := store.Upsert(ctx, recategorized)
			Expect(err).ToNot(HaveOccurred())
			Expect(kind).To(Equal(ChangeUnchanged))
		})

		It("round trips every field", func() {
			e := seminar("nih", "grand-rounds", now.AddDate(0, 0, 3))
			end := e.Start.Add(90 * time.Minute)
			e.End = &end
			e.Raw = map[string]any{"uid": "abc"}
			e.AccessRestriction = v1.AccessNIHOnly
			_, _, err := store.Upsert(ctx, e)
			Expect(err).ToNot(HaveOccurred())

			stored, err := store.GetEvent(ctx, e.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Start).To(Equal(e.Start))
			Expect(*stored.End).To(Equal(end))
			Expect(stored.Tags).To(Equal([]string{"hiv"}))
			Expect(stored.Raw).To(HaveKeyWithValue("uid", "abc"))
			Expect(stored.AccessRestriction).To(Equal(v1.AccessNIHOnly))
			Expect(cmp.Diff(e, *stored, cmpopts.IgnoreFields(v1.Event{}, "CreatedAt", "UpdatedAt"))).To(BeEmpty())
		})
	})

	Describe("DeleteStale", func() {
		It("removes exactly the identities missing from the current fetch", func() {
			a := seminar("src", "a", now)
			b := seminar("src", "b", now)
			c := seminar("src", "c", now)
			other := seminar("other", "b", now)
			for _, e := range []v1.Event{a, b, c, other} {
				_, _, err := store.Upsert(ctx, e)
				Expect(err).ToNot(HaveOccurred())
			}

			removed, err := store.DeleteStale(ctx, "src", []string{a.ID, c.ID})
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(Equal(int64(1)))

			remaining, err := store.GetBySource(ctx, "src")
			Expect(err).ToNot(HaveOccurred())
			Expect(remaining).To(HaveLen(2))
			Expect(store.GetEvent(ctx, other.ID)).ToNot(BeNil())
		})

		It("is a no-op for an empty identity list", func() {
			_, _, err := store.Upsert(ctx, seminar("src", "a", now))
			Expect(err).ToNot(HaveOccurred())

			removed, err := store.DeleteStale(ctx, "src", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(BeZero())

			remaining, _ := store.GetBySource(ctx, "src")
			Expect(remaining).To(HaveLen(1))
		})
	})

	Describe("QueryWindow", func() {
		It("returns events inside the window ordered by start", func() {
			for title, offset := range map[string]int{"t-40": -40, "t+5": 5, "t-10": -10, "t+40": 40} {
				_, _, err := store.Upsert(ctx, seminar("src", title, now.AddDate(0, 0, offset)))
				Expect(err).ToNot(HaveOccurred())
			}

			events, err := store.QueryWindow(ctx, WindowQuery{DaysBehind: 30, DaysAhead: 30})
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(2))
			Expect(events[0].Title).To(Equal("t-10"))
			Expect(events[1].Title).To(Equal("t+5"))
		})

		It("filters by source and category", func() {
			a := seminar("a", "one", now)
			b := seminar("b", "two", now)
			b.Category = "Policy"
			b.Checksum, b.ID = "", ""
			b.EnsureFingerprints()
			for _, e := range []v1.Event{a, b} {
				_, _, err := store.Upsert(ctx, e)
				Expect(err).ToNot(HaveOccurred())
			}

			events, err := store.QueryWindow(ctx, WindowQuery{DaysBehind: 1, DaysAhead: 1, SourceIDs: []string{"b"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].SourceID).To(Equal("b"))

			events, err = store.QueryWindow(ctx, WindowQuery{DaysBehind: 1, DaysAhead: 1, Categories: []string{"Virology"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].SourceID).To(Equal("a"))
		})
	})

	Describe("Statistics", func() {
		It("groups by source and category", func() {
			a := seminar("a", "one", now)
			b := seminar("b", "two", now)
			b.Category = ""
			for _, e := range []v1.Event{a, b, seminar("a", "three", now)} {
				_, _, err := store.Upsert(ctx, e)
				Expect(err).ToNot(HaveOccurred())
			}

			stats, err := store.Statistics(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.TotalSeminars).To(Equal(int64(3)))
			Expect(stats.BySource).To(Equal(map[string]int64{"a": 2, "b": 1}))
			Expect(stats.ByCategory).To(Equal(map[string]int64{"Virology": 2, "Uncategorized": 1}))
		})
	})
})
