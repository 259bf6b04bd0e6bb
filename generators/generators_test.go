package generators

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/apognu/gocal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	v1 "github.com/flanksource/gid-seminars/api/v1"
)

func read(path string) string {
	data, err := os.ReadFile(path)
	Expect(err).ToNot(HaveOccurred())
	return string(data)
}

var _ = Describe("ICS", func() {
	It("writes the windowed, filtered seminars as a calendar", func() {
		g, events := fixture()
		path := filepath.Join(GinkgoT().TempDir(), "out", "gid_seminars.ics")

		result, err := g.ICS(context.Background(), path)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Events).To(Equal(3))

		data := read(path)
		Expect(data).To(ContainSubstring("PRODID:-//GID Seminars//Aggregator//EN"))
		Expect(data).To(ContainSubstring("METHOD:PUBLISH"))
		Expect(data).To(ContainSubstring("CALSCALE:GREGORIAN"))
		Expect(data).To(ContainSubstring("X-WR-CALNAME:GID Seminars"))
		Expect(strings.Count(data, "BEGIN:VEVENT")).To(Equal(3))
		Expect(strings.Count(data, "BEGIN:VALARM")).To(Equal(3))
		Expect(data).To(ContainSubstring("TRIGGER:-PT60M"))
		Expect(data).To(ContainSubstring("UID:" + events["upcoming"].ID + "@" + UIDDomain))

		// 12:00 in New York during daylight saving time
		Expect(data).To(ContainSubstring("DTSTART:20250602T160000Z"))
		Expect(data).To(ContainSubstring("DTEND:20250602T180000Z"))
		// no end time falls back to one hour
		Expect(data).To(ContainSubstring("DTSTART:20250530T160000Z"))
		Expect(data).To(ContainSubstring("DTEND:20250530T170000Z"))

		Expect(data).ToNot(ContainSubstring("Next Season"))
		Expect(data).ToNot(ContainSubstring("Cancelled Session"))
	})

	It("leaves out alarms when the reminder is zero", func() {
		g, _ := fixture()
		g.Settings.Calendar.ReminderMinutes = lo.ToPtr(0)
		g.Settings.Calendar.Name = "Lab Calendar"

		path := filepath.Join(GinkgoT().TempDir(), "cal.ics")
		_, err := g.ICS(context.Background(), path)
		Expect(err).ToNot(HaveOccurred())

		data := read(path)
		Expect(data).ToNot(ContainSubstring("BEGIN:VALARM"))
		Expect(data).To(ContainSubstring("X-WR-CALNAME:Lab Calendar"))

		start, end := now.AddDate(0, 0, -90), now.AddDate(0, 0, 90)
		parser := gocal.NewParser(strings.NewReader(data))
		parser.Start, parser.End = &start, &end
		Expect(parser.Parse()).To(Succeed())
		Expect(parser.Events).To(HaveLen(3))

		malaria, ok := lo.Find(parser.Events, func(e gocal.Event) bool { return e.Summary == "Malaria Vaccine Update" })
		Expect(ok).To(BeTrue())
		Expect(malaria.Location).To(Equal("Online"))
		Expect(malaria.Categories).To(ContainElement("Infectious Disease"))
		Expect(malaria.Description).To(ContainSubstring("Phase 3 results"))
		Expect(malaria.Description).To(ContainSubstring("Event URL: https://example.org/malaria"))
		Expect(malaria.Description).To(ContainSubstring("Registration: https://example.org/register"))
		Expect(malaria.Description).To(ContainSubstring("Access: Registration Required"))
	})
})

var _ = Describe("Description", func() {
	It("lists links, the source and non public access", func() {
		Expect(Description(v1.Event{
			SourceID:          "nih",
			Description:       "About",
			URL:               "https://a",
			RecordingURL:      "https://r",
			AccessRestriction: v1.AccessNIHOnly,
		})).To(Equal("About\n\nEvent URL: https://a\nRecording: https://r\n\nSource: nih\nAccess: NIH Only"))

		Expect(Description(v1.Event{SourceID: "who", AccessRestriction: v1.AccessPublic})).To(Equal("\n\nSource: who"))
	})
})

var _ = Describe("JSON", func() {
	It("writes metadata and events with nulls for missing fields", func() {
		g, events := fixture()
		path := filepath.Join(GinkgoT().TempDir(), "seminars.json")

		result, err := g.JSON(context.Background(), path)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Events).To(Equal(3))

		var feed map[string]any
		Expect(json.Unmarshal([]byte(read(path)), &feed)).To(Succeed())

		metadata := feed["metadata"].(map[string]any)
		Expect(metadata["title"]).To(Equal("GID Seminars Feed"))
		Expect(metadata["generated_at"]).To(Equal("2025-06-01T12:00:00Z"))
		Expect(metadata["total_events"]).To(BeNumerically("==", 3))
		Expect(metadata["time_window"]).To(Equal(map[string]any{"days_behind": float64(30), "days_ahead": float64(30)}))
		Expect(metadata["sources"]).To(Equal([]any{"cdc", "nih", "who"}))
		Expect(metadata["categories"]).To(ContainElements("Infectious Disease", "Uncategorized"))

		list := feed["events"].([]any)
		Expect(list).To(HaveLen(3))

		past := list[0].(map[string]any)
		Expect(past["id"]).To(Equal(events["past"].ID))
		Expect(past["source"]).To(Equal("who"))
		Expect(past["start_datetime"]).To(Equal("2025-05-30T12:00:00"))
		Expect(past["end_datetime"]).To(BeNil())
		Expect(past["description"]).To(BeNil())
		Expect(past["recording_url"]).To(Equal("https://example.org/recording"))
		Expect(past["tags"]).To(Equal([]any{}))
		Expect(past["access_restriction"]).To(Equal("Public"))

		upcoming := list[2].(map[string]any)
		Expect(upcoming["end_datetime"]).To(Equal("2025-06-02T14:00:00"))
		Expect(upcoming["timezone"]).To(Equal("America/New_York"))
	})
})

var _ = Describe("HTML", func() {
	It("splits seminars into upcoming and past sections", func() {
		g, _ := fixture()
		path := filepath.Join(GinkgoT().TempDir(), "index.html")

		result, err := g.HTML(context.Background(), path)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Events).To(Equal(3))

		page := read(path)
		Expect(page).To(ContainSubstring(`id="upcoming-count">2</span>`))
		Expect(page).To(ContainSubstring(`id="past-count">1</span>`))
		Expect(page).To(ContainSubstring(`<span id="visible-count">3</span>`))

		Expect(strings.Index(page, "Grand Rounds")).To(BeNumerically("<", strings.Index(page, "Malaria Vaccine Update")))
		Expect(strings.Index(page, "Malaria Vaccine Update")).To(BeNumerically("<", strings.Index(page, "Outbreak Briefing")))

		Expect(page).To(ContainSubstring("Grand Rounds &lt;live&gt;"))
		Expect(page).ToNot(ContainSubstring("<live>"))
		Expect(page).To(ContainSubstring("Sunday, June 1, 2025"))
		Expect(page).To(ContainSubstring("Sun, Jun 01, 2025 at 02:00 PM (UTC)"))
		Expect(page).To(ContainSubstring(`<span class="badge badge-today">Today</span>`))
		Expect(page).To(ContainSubstring(`<span class="badge badge-recording">Recording Available</span>`))
		Expect(page).To(ContainSubstring(`<span class="badge badge-access">Registration Required</span>`))
		Expect(page).To(ContainSubstring(`<option value="who">who</option>`))
		Expect(page).To(ContainSubstring(`<option value="Infectious Disease">Infectious Disease</option>`))
		Expect(page).To(ContainSubstring("labels=hide-event"))
		Expect(page).ToNot(ContainSubstring("Cancelled Session"))
	})

	It("shows a placeholder for empty sections", func() {
		g, _ := fixture()
		data, upcoming, past, err := g.RenderHTML(nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(upcoming).To(BeZero())
		Expect(past).To(BeZero())
		Expect(string(data)).To(ContainSubstring("No upcoming seminars in the next 30 days."))
		Expect(string(data)).To(ContainSubstring("No past seminars in the last 30 days."))
	})
})

var _ = Describe("All", func() {
	It("renders every format into the output directory", func() {
		g, _ := fixture()
		g.Settings.Output.OutputDir = GinkgoT().TempDir()

		results, err := g.All(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for format, name := range map[string]string{"ics": "gid_seminars.ics", "json": "seminars.json", "html": "index.html"} {
			Expect(results[format].Path).To(Equal(filepath.Join(g.Settings.Output.OutputDir, name)))
			Expect(results[format].Events).To(Equal(3))
			Expect(results[format].Path).To(BeAnExistingFile())
		}
	})
})
