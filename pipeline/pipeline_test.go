package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/onsi/gomega"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/utils"
)

const settingsTOML = `
[output]
output_dir = "out"

[filtering]
exclusions_file = "data/excluded.toml"

[http]
max_retries = 1
timeout = 5

[time_window]
days_behind = 10
days_ahead = 10
`

const manualTOML = `
[[seminar]]
title = "Tuberculosis Diagnostics"
start_datetime = "2025-06-03T10:00:00"
url = "https://example.org/tb"

[[seminar]]
title = "Dengue Update"
start_datetime = "2025-06-04T10:00:00"
url = "https://example.org/dengue"
`

const exclusionsTOML = `
[[exclude_url]]
url = "https://example.org/dengue"
reason = "duplicate"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T, sourcesTOML string) *Pipeline {
	t.Helper()
	t.Cleanup(utils.MockTime(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	base := t.TempDir()
	writeFile(t, filepath.Join(base, "config", SettingsFile), settingsTOML)
	writeFile(t, filepath.Join(base, "config", SourcesFile), sourcesTOML)
	writeFile(t, filepath.Join(base, "data", "manual.toml"), manualTOML)
	writeFile(t, filepath.Join(base, "data", "excluded.toml"), exclusionsTOML)

	settings, sources, err := Load(filepath.Join(base, "config"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := db.Init(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return &Pipeline{Settings: settings, Sources: sources, Store: store, BaseDir: base, SkipUpload: true}
}

func TestRunRendersCollectedSeminars(t *testing.T) {
	g := gomega.NewWithT(t)
	p := setup(t, `
[source.curated]
type = "manual"
file_path = "data/manual.toml"

[source.paused]
type = "rss"
url = "https://example.org/feed"
enabled = false
`)

	result, err := p.Run(context.Background())
	g.Expect(err).ToNot(gomega.HaveOccurred())
	g.Expect(result.Report.Order).To(gomega.Equal([]string{"curated", "paused"}))
	g.Expect(result.Report.Outcomes["curated"].Stats.Added).To(gomega.Equal(2))
	g.Expect(result.Report.Outcomes["paused"].Status).To(gomega.Equal(models.StatusSkipped))
	g.Expect(result.Uploads).To(gomega.BeNil())

	g.Expect(result.Outputs).To(gomega.HaveLen(3))
	for _, output := range result.Outputs {
		g.Expect(filepath.Dir(output.Path)).To(gomega.Equal(filepath.Join(p.BaseDir, "out")))
		g.Expect(output.Events).To(gomega.Equal(1))
	}

	data, err := os.ReadFile(result.Outputs["json"].Path)
	g.Expect(err).ToNot(gomega.HaveOccurred())
	var feed struct {
		Events []struct {
			Title string `json:"title"`
		} `json:"events"`
	}
	g.Expect(json.Unmarshal(data, &feed)).To(gomega.Succeed())
	g.Expect(feed.Events).To(gomega.HaveLen(1))
	g.Expect(feed.Events[0].Title).To(gomega.Equal("Tuberculosis Diagnostics"))
}

func TestRunStopsWhenEverySourceFails(t *testing.T) {
	g := gomega.NewWithT(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := setup(t, `
[source.down]
type = "rss"
url = "`+server.URL+`"
`)

	result, err := p.Run(context.Background())
	g.Expect(err).To(gomega.MatchError("all sources failed"))
	g.Expect(result.Report.Outcomes["down"].Status).To(gomega.Equal(models.StatusError))
	g.Expect(result.Outputs).To(gomega.BeNil())
	g.Expect(filepath.Join(p.BaseDir, "out")).ToNot(gomega.BeADirectory())
}

func TestUploadNeedsCredentials(t *testing.T) {
	g := gomega.NewWithT(t)
	p := setup(t, `
[source.curated]
type = "manual"
file_path = "data/manual.toml"
`)
	p.SkipUpload = false
	t.Setenv("LABKEY_API", "")

	result, err := p.Run(context.Background())
	var deployErr *v1.DeploymentError
	g.Expect(errors.As(err, &deployErr)).To(gomega.BeTrue())
	g.Expect(result.Outputs).To(gomega.HaveLen(3))
}

func TestLoadMergesLabKeySettings(t *testing.T) {
	g := gomega.NewWithT(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SettingsFile), settingsTOML)
	writeFile(t, filepath.Join(dir, LabKeyFile), `
[labkey]
server_url = "labkey.example.org"
project = "GID"

[webdav.files]
upload_json = false
`)
	writeFile(t, filepath.Join(dir, SourcesFile), `
[source.b]
url = "https://example.org/b"

[source.a]
type = "ical"
url = "https://example.org/a.ics"
`)

	settings, sources, err := Load(dir)
	g.Expect(err).ToNot(gomega.HaveOccurred())
	g.Expect(settings.Output.Dir()).To(gomega.Equal("out"))
	g.Expect(settings.LabKey.Project).To(gomega.Equal("GID"))
	g.Expect(settings.WebDAV.Files.Uploads(".json")).To(gomega.BeFalse())
	g.Expect(settings.WebDAV.Files.Uploads(".html")).To(gomega.BeTrue())
	g.Expect(sources).To(gomega.HaveLen(2))
	g.Expect(sources[0].ID).To(gomega.Equal("b"))
	g.Expect(sources[0].GetType()).To(gomega.Equal("rss"))
}

func TestJobUsesConfiguredSchedule(t *testing.T) {
	g := gomega.NewWithT(t)
	p := &Pipeline{}
	g.Expect(p.Job().Schedule).To(gomega.Equal(v1.DefaultSchedule))

	p.Settings.Schedule.Cron = "@every 1h"
	g.Expect(p.Job().Schedule).To(gomega.Equal("@every 1h"))
}

func TestResolve(t *testing.T) {
	g := gomega.NewWithT(t)
	p := &Pipeline{BaseDir: "/srv/gid"}
	g.Expect(p.Resolve("data/x.toml")).To(gomega.Equal("/srv/gid/data/x.toml"))
	g.Expect(p.Resolve("/etc/x.toml")).To(gomega.Equal("/etc/x.toml"))
	g.Expect(p.Resolve("")).To(gomega.Equal(""))
}
