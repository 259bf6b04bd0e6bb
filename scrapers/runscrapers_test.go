package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	id     string
	events []v1.Event
	err    error
	calls  atomic.Int32
	fetch  func(ctx api.ScrapeContext) ([]v1.Event, error)
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) Fetch(ctx api.ScrapeContext) ([]v1.Event, error) {
	f.calls.Add(1)
	if f.fetch != nil {
		return f.fetch(ctx)
	}
	return f.events, f.err
}

func seminar(sourceID, title string, start time.Time) v1.Event {
	e, err := v1.NewEvent(v1.Event{SourceID: sourceID, Title: title, Start: start, URL: "https://example.org/" + title})
	Expect(err).ToNot(HaveOccurred())
	return *e
}

func newTestStore() *db.Store {
	store, err := db.Init(":memory:")
	Expect(err).ToNot(HaveOccurred())
	ginkgo.DeferCleanup(store.Close)
	return store
}

func enabled(id string) v1.SourceConfig {
	return v1.SourceConfig{ID: id, Type: "fake"}
}

var _ = ginkgo.Describe("Runner", func() {
	var (
		store  *db.Store
		runner *Runner
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		ginkgo.DeferCleanup(utils.MockTime(now))
		store = newTestStore()
		runner = &Runner{Store: store, HTTP: v1.HTTPConfig{MaxRetries: 1}}
		ctx = context.Background()
	})

	ginkgo.It("upserts fetched events and prunes the ones that disappeared", func() {
		a := seminar("nih", "a", now.AddDate(0, 0, 1))
		b := seminar("nih", "b", now.AddDate(0, 0, 2))
		source := &fakeSource{id: "nih", events: []v1.Event{a, b}}

		stats, err := runner.RunSource(ctx, enabled("nih"), source)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats).To(Equal(SourceStats{Found: 2, Added: 2}))

		source.events = []v1.Event{a}
		stats, err = runner.RunSource(ctx, enabled("nih"), source)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats).To(Equal(SourceStats{Found: 1, Removed: 1}))

		events, err := store.GetBySource(ctx, "nih")
		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].ID).To(Equal(a.ID))

		last, err := store.LastSuccessfulRun(ctx, "nih")
		Expect(err).ToNot(HaveOccurred())
		Expect(last.EventsFound).To(Equal(1))
		Expect(last.EventsRemoved).To(Equal(1))
	})

	ginkgo.It("never prunes on an empty fetch", func() {
		source := &fakeSource{id: "nih", events: []v1.Event{seminar("nih", "a", now)}}
		_, err := runner.RunSource(ctx, enabled("nih"), source)
		Expect(err).ToNot(HaveOccurred())

		source.events = nil
		stats, err := runner.RunSource(ctx, enabled("nih"), source)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats.Removed).To(Equal(0))

		events, err := store.GetBySource(ctx, "nih")
		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	ginkgo.It("counts updates when the change fingerprint moves", func() {
		e := seminar("nih", "a", now)
		source := &fakeSource{id: "nih", events: []v1.Event{e}}
		_, err := runner.RunSource(ctx, enabled("nih"), source)
		Expect(err).ToNot(HaveOccurred())

		changed := e
		changed.Description = "now with a description"
		changed.Checksum = ""
		source.events = []v1.Event{changed}
		stats, err := runner.RunSource(ctx, enabled("nih"), source)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats).To(Equal(SourceStats{Found: 1, Updated: 1}))
	})

	ginkgo.It("records the error and leaves stored events alone when the fetch fails", func() {
		ok := &fakeSource{id: "who", events: []v1.Event{seminar("who", "a", now)}}
		_, err := runner.RunSource(ctx, enabled("who"), ok)
		Expect(err).ToNot(HaveOccurred())

		failing := &fakeSource{id: "who", err: &v1.NetworkError{SourceID: "who", Message: "Request failed after 3 attempts: timeout"}}
		_, err = runner.RunSource(ctx, enabled("who"), failing)
		Expect(err).To(HaveOccurred())
		var netErr *v1.NetworkError
		Expect(errors.As(err, &netErr)).To(BeTrue())

		runs, err := store.RecentRuns(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs).To(HaveLen(2))
		statuses := []string{runs[0].Status, runs[1].Status}
		Expect(statuses).To(ConsistOf(models.StatusSuccess, models.StatusError))

		events, err := store.GetBySource(ctx, "who")
		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	ginkgo.It("records a skipped run for disabled sources without fetching", func() {
		disabled := false
		config := v1.SourceConfig{ID: "off", Enabled: &disabled}
		source := &fakeSource{id: "off"}

		stats, err := runner.RunSource(ctx, config, source)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats).To(Equal(SourceStats{}))
		Expect(source.calls.Load()).To(BeZero())

		runs, err := store.RecentRuns(ctx, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(runs[0].Status).To(Equal(models.StatusSkipped))
	})

	ginkgo.It("stores the validators of the primary response on the run", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Last-Modified", "Sun, 01 Jun 2025 10:00:00 GMT")
			_, _ = w.Write([]byte("feed"))
		}))
		ginkgo.DeferCleanup(server.Close)

		source := &fakeSource{id: "feed", fetch: func(ctx api.ScrapeContext) ([]v1.Event, error) {
			if _, err := ctx.HTTP().Get(ctx, server.URL, httprequest.Primary()); err != nil {
				return nil, err
			}
			return []v1.Event{seminar("feed", "a", now)}, nil
		}}

		_, err := runner.RunSource(ctx, enabled("feed"), source)
		Expect(err).ToNot(HaveOccurred())

		last, err := store.LastSuccessfulRun(ctx, "feed")
		Expect(err).ToNot(HaveOccurred())
		Expect(last.ETag).To(Equal(`"abc"`))
		Expect(last.LastModified).To(Equal("Sun, 01 Jun 2025 10:00:00 GMT"))
		Expect(last.ContentHash).To(Equal(utils.ContentHash([]byte("feed"))))
	})
})

var _ = ginkgo.Describe("Collector", func() {
	var (
		store   *db.Store
		sources map[string]*fakeSource
	)

	newCollector := func(concurrency int) *Collector {
		return &Collector{
			Runner:      &Runner{Store: store, HTTP: v1.HTTPConfig{MaxRetries: 1}},
			Concurrency: concurrency,
			Factories: map[string]api.SourceFactory{
				"fake": func(config v1.SourceConfig) (api.Source, error) {
					return sources[config.ID], nil
				},
				"broken": func(config v1.SourceConfig) (api.Source, error) {
					return nil, &v1.ConfigurationError{SourceID: config.ID, Message: "missing credentials"}
				},
			},
		}
	}

	ginkgo.BeforeEach(func() {
		ginkgo.DeferCleanup(utils.MockTime(now))
		store = newTestStore()
		sources = map[string]*fakeSource{
			"one":   {id: "one", events: []v1.Event{seminar("one", "a", now), seminar("one", "b", now)}},
			"two":   {id: "two", err: errors.New("upstream is down")},
			"three": {id: "three", events: []v1.Event{seminar("three", "c", now)}},
		}
	})

	for _, concurrency := range []int{1, 3} {
		ginkgo.It(fmt.Sprintf("isolates a failing source from the others (concurrency %d)", concurrency), func() {
			report := newCollector(concurrency).Collect(context.Background(), []v1.SourceConfig{enabled("one"), enabled("two"), enabled("three")})

			Expect(report.Order).To(Equal([]string{"one", "two", "three"}))
			Expect(report.Outcomes).To(HaveLen(3))
			Expect(report.Outcomes["one"].Status).To(Equal(models.StatusSuccess))
			Expect(report.Outcomes["two"].Status).To(Equal(models.StatusError))
			Expect(report.Outcomes["two"].Error).To(Equal("upstream is down"))
			Expect(report.Outcomes["three"].Status).To(Equal(models.StatusSuccess))

			summary := report.Summary()
			Expect(summary.Succeeded).To(Equal(2))
			Expect(summary.Failed).To(Equal(1))
			Expect(summary.Found).To(Equal(3))
			Expect(summary.Added).To(Equal(3))
			Expect(report.Failed()).To(BeFalse())

			for _, s := range sources {
				Expect(s.calls.Load()).To(Equal(int32(1)))
			}
			three, err := store.GetBySource(context.Background(), "three")
			Expect(err).ToNot(HaveOccurred())
			Expect(three).To(HaveLen(1))
		})
	}

	ginkgo.It("leaves out unknown types and sources that fail to initialize", func() {
		disabled := false
		report := newCollector(1).Collect(context.Background(), []v1.SourceConfig{
			enabled("one"),
			{ID: "mystery", Type: "carrier-pigeon"},
			{ID: "sky", Type: "broken"},
			{ID: "off", Type: "fake", Enabled: &disabled},
		})

		Expect(report.Outcomes).To(HaveLen(2))
		Expect(report.Outcomes).ToNot(HaveKey("mystery"))
		Expect(report.Outcomes).ToNot(HaveKey("sky"))
		Expect(report.Outcomes["off"].Status).To(Equal(models.StatusSkipped))
		Expect(report.Summary().Skipped).To(Equal(1))
	})

	ginkgo.It("fails only when no source succeeded", func() {
		report := newCollector(2).Collect(context.Background(), []v1.SourceConfig{enabled("two")})
		Expect(report.Failed()).To(BeTrue())
	})
})

var _ = ginkgo.Describe("Registry", func() {
	ginkgo.It("knows every source type", func() {
		Expect(Types()).To(ConsistOf("rss", "ical", "manual", "bluesky", "scraper", "podcast", "conference", "who"))
	})

	ginkgo.It("rejects unknown types and invalid configuration", func() {
		_, err := NewSource(v1.SourceConfig{ID: "x", Type: "fax"})
		Expect(err).To(BeAssignableToTypeOf(&v1.ConfigurationError{}))

		_, err = NewSource(v1.SourceConfig{ID: "x", Type: "scraper", URL: "https://example.org", ScraperType: "nope"})
		Expect(err).To(BeAssignableToTypeOf(&v1.ConfigurationError{}))

		source, err := NewSource(v1.SourceConfig{ID: "feed", URL: "https://example.org/rss"})
		Expect(err).ToNot(HaveOccurred())
		Expect(source.ID()).To(Equal("feed"))
	})
})

var _ = ginkgo.Describe("RunNowHandler", func() {
	ginkgo.It("returns 404 for unknown sources", func() {
		e := echo.New()
		e.POST("/run/:id", RunNowHandler(&Collector{}, []v1.SourceConfig{enabled("one")}))

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run/missing", nil))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
