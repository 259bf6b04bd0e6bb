package podcast

import (
	"context"
	"testing"
	"time"

	"github.com/onsi/gomega"

	"github.com/flanksource/gid-seminars/api"
	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>This Week in Virology</title>
  <item>
    <title>TWiV 1200: Measles returns</title>
    <pubDate>Tue, 27 May 2025 18:00:00 +0000</pubDate>
    <description>Short</description>
    <content:encoded><![CDATA[<p>The hosts discuss <b>measles</b> outbreaks.</p>]]></content:encoded>
    <enclosure url="https://cdn.example.org/twiv1200.mp3" type="audio/mpeg"/>
    <itunes:duration>01:32:10</itunes:duration>
  </item>
  <item>
    <title>TWiV 1199: Old news</title>
    <link>https://www.microbe.tv/twiv/twiv-1199/</link>
    <pubDate>Tue, 01 Apr 2025 18:00:00 +0000</pubDate>
  </item>
  <item>
    <title>TWiV 1198: Zoned</title>
    <link>https://www.microbe.tv/twiv/twiv-1198/</link>
    <pubDate>Sat, 24 May 2025 10:00:00 -0400</pubDate>
  </item>
  <item>
    <title>TWiV 1197: Bad date</title>
    <pubDate>sometime</pubDate>
  </item>
</channel>
</rss>`

func TestParse(t *testing.T) {
	g := gomega.NewWithT(t)
	defer utils.MockTime(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))()

	cfg := v1.SourceConfig{ID: "twiv", URL: "https://example.org/twiv.xml", Category: "Podcast"}
	source, err := New(cfg)
	g.Expect(err).ToNot(gomega.HaveOccurred())
	ctx := api.NewScrapeContext(context.Background(), nil).WithSource(cfg)

	events, err := source.(*Scraper).Parse(ctx, []byte(feed))
	g.Expect(err).ToNot(gomega.HaveOccurred())
	g.Expect(events).To(gomega.HaveLen(2))

	first := events[0]
	g.Expect(first.Title).To(gomega.Equal("TWiV 1200: Measles returns"))
	g.Expect(first.URL).To(gomega.Equal("https://cdn.example.org/twiv1200.mp3"))
	g.Expect(first.RecordingURL).To(gomega.Equal("https://cdn.example.org/twiv1200.mp3"))
	g.Expect(first.Start).To(gomega.Equal(time.Date(2025, 5, 27, 18, 0, 0, 0, time.UTC)))
	g.Expect(first.Organizer).To(gomega.Equal("This Week in Virology"))
	g.Expect(first.Location).To(gomega.Equal("Podcast"))
	g.Expect(first.Description).To(gomega.Equal("[Podcast: This Week in Virology] Duration: 01:32:10\n\nThe hosts discuss measles outbreaks."))

	g.Expect(events[1].Start).To(gomega.Equal(time.Date(2025, 5, 24, 14, 0, 0, 0, time.UTC)))
	g.Expect(events[1].URL).To(gomega.Equal("https://www.microbe.tv/twiv/twiv-1198/"))
	g.Expect(events[1].RecordingURL).To(gomega.BeEmpty())
}

func TestParseMaxEpisodes(t *testing.T) {
	g := gomega.NewWithT(t)
	defer utils.MockTime(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))()

	cfg := v1.SourceConfig{ID: "twiv", URL: "https://example.org/twiv.xml", MaxEpisodes: 1}
	source, _ := New(cfg)
	events, err := source.(*Scraper).Parse(api.NewScrapeContext(context.Background(), nil).WithSource(cfg), []byte(feed))
	g.Expect(err).ToNot(gomega.HaveOccurred())
	g.Expect(events).To(gomega.HaveLen(1))
}
