package v1

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hairyhenderson/toml"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/flanksource/gid-seminars/utils"
)

const DefaultUserAgent = "GID-Seminars-Aggregator/1.0"

// SourceConfig is one `[source.<id>]` table.
type SourceConfig struct {
	ID              string   `toml:"-" yaml:"-" json:"id"`
	Type            string   `toml:"type" yaml:"type" json:"type"`
	Name            string   `toml:"name" yaml:"name" json:"name,omitempty"`
	Enabled         *bool    `toml:"enabled" yaml:"enabled" json:"enabled,omitempty"`
	URL             string   `toml:"url" yaml:"url" json:"url,omitempty"`
	FilePath        string   `toml:"file_path" yaml:"file_path" json:"file_path,omitempty"`
	Category        string   `toml:"category" yaml:"category" json:"category,omitempty"`
	DefaultTimezone string   `toml:"default_timezone" yaml:"default_timezone" json:"default_timezone,omitempty"`
	ScraperType     string   `toml:"scraper_type" yaml:"scraper_type" json:"scraper_type,omitempty"`
	MaxEvents       int      `toml:"max_events" yaml:"max_events" json:"max_events,omitempty"`
	MaxEpisodes     int      `toml:"max_episodes" yaml:"max_episodes" json:"max_episodes,omitempty"`
	DaysBack        int      `toml:"days_back" yaml:"days_back" json:"days_back,omitempty"`
	SearchQueries   []string `toml:"search_queries" yaml:"search_queries" json:"search_queries,omitempty"`
	SearchAccounts  []string `toml:"search_accounts" yaml:"search_accounts" json:"search_accounts,omitempty"`
	LimitPerQuery   int      `toml:"limit_per_query" yaml:"limit_per_query" json:"limit_per_query,omitempty"`
}

func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s SourceConfig) GetType() string {
	if s.Type == "" {
		return "rss"
	}
	return s.Type
}

func (s SourceConfig) DisplayName() string {
	if s.Name == "" {
		return s.ID
	}
	return s.Name
}

func (s SourceConfig) Timezone() string {
	if s.DefaultTimezone == "" {
		return utils.DefaultTimezone
	}
	return s.DefaultTimezone
}

// HTTPConfig is the request policy shared by every source.
type HTTPConfig struct {
	Timeout        int    `toml:"timeout" yaml:"timeout" json:"timeout"`
	MaxRetries     int    `toml:"max_retries" yaml:"max_retries" json:"max_retries"`
	RetryDelayBase int    `toml:"retry_delay_base" yaml:"retry_delay_base" json:"retry_delay_base"`
	UserAgent      string `toml:"user_agent" yaml:"user_agent" json:"user_agent"`
	CacheTTL       string `toml:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl,omitempty"`
}

func (h HTTPConfig) GetTimeout() time.Duration {
	if h.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.Timeout) * time.Second
}

func (h HTTPConfig) GetMaxRetries() int {
	if h.MaxRetries <= 0 {
		return 3
	}
	return h.MaxRetries
}

func (h HTTPConfig) GetRetryDelayBase() time.Duration {
	if h.RetryDelayBase <= 0 {
		return 2 * time.Second
	}
	return time.Duration(h.RetryDelayBase) * time.Second
}

func (h HTTPConfig) GetUserAgent() string {
	if h.UserAgent == "" {
		return DefaultUserAgent
	}
	return h.UserAgent
}

type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path" json:"path"`
}

type OutputConfig struct {
	OutputDir    string `toml:"output_dir" yaml:"output_dir" json:"output_dir"`
	ICSFilename  string `toml:"ics_filename" yaml:"ics_filename" json:"ics_filename"`
	HTMLFilename string `toml:"html_filename" yaml:"html_filename" json:"html_filename"`
	JSONFilename string `toml:"json_filename" yaml:"json_filename" json:"json_filename"`
}

type TimeWindow struct {
	DaysBehind int `toml:"days_behind" yaml:"days_behind" json:"days_behind"`
	DaysAhead  int `toml:"days_ahead" yaml:"days_ahead" json:"days_ahead"`
}

func (w TimeWindow) Behind() int {
	if w.DaysBehind <= 0 {
		return utils.DefaultDaysBehind
	}
	return w.DaysBehind
}

func (w TimeWindow) Ahead() int {
	if w.DaysAhead <= 0 {
		return utils.DefaultDaysAhead
	}
	return w.DaysAhead
}

type CalendarConfig struct {
	ProdID          string `toml:"calendar_prodid" yaml:"calendar_prodid" json:"calendar_prodid"`
	Name            string `toml:"calendar_name" yaml:"calendar_name" json:"calendar_name"`
	Description     string `toml:"calendar_description" yaml:"calendar_description" json:"calendar_description"`
	ReminderMinutes *int   `toml:"default_reminder_minutes" yaml:"default_reminder_minutes" json:"default_reminder_minutes,omitempty"`
}

const (
	DefaultCalendarProdID  = "-//GID Seminars//Aggregator//EN"
	DefaultCalendarName    = "GID Seminars"
	DefaultReminderMinutes = 60
)

func (c CalendarConfig) GetProdID() string {
	if c.ProdID == "" {
		return DefaultCalendarProdID
	}
	return c.ProdID
}

func (c CalendarConfig) GetName() string {
	if c.Name == "" {
		return DefaultCalendarName
	}
	return c.Name
}

// Reminder is the alarm offset in minutes; zero disables alarms.
func (c CalendarConfig) Reminder() int {
	if c.ReminderMinutes == nil {
		return DefaultReminderMinutes
	}
	return *c.ReminderMinutes
}

type FilteringConfig struct {
	Keywords          []string `toml:"keywords" yaml:"keywords" json:"keywords"`
	ExcludeKeywords   []string `toml:"exclude_keywords" yaml:"exclude_keywords" json:"exclude_keywords"`
	ExcludeCategories []string `toml:"exclude_categories" yaml:"exclude_categories" json:"exclude_categories"`
	ExclusionsFile    string   `toml:"exclusions_file" yaml:"exclusions_file" json:"exclusions_file"`
}

func (f FilteringConfig) Exclusions() string {
	return lo.CoalesceOrEmpty(f.ExclusionsFile, "data/excluded_events.toml")
}

type CollectorConfig struct {
	Concurrency int `toml:"concurrency" yaml:"concurrency" json:"concurrency"`
}

type ScheduleConfig struct {
	Cron string `toml:"cron" yaml:"cron" json:"cron"`
}

// DefaultSchedule runs the pipeline once a day at 06:00.
const DefaultSchedule = "0 6 * * *"

func (s ScheduleConfig) GetCron() string {
	return lo.CoalesceOrEmpty(s.Cron, DefaultSchedule)
}

type LabKeyConfig struct {
	ServerURL string `toml:"server_url" yaml:"server_url" json:"server_url"`
	Project   string `toml:"project" yaml:"project" json:"project"`
}

type WebDAVFiles struct {
	UploadHTML *bool `toml:"upload_html" yaml:"upload_html" json:"upload_html,omitempty"`
	UploadICS  *bool `toml:"upload_ics" yaml:"upload_ics" json:"upload_ics,omitempty"`
	UploadJSON *bool `toml:"upload_json" yaml:"upload_json" json:"upload_json,omitempty"`
}

type WebDAVConfig struct {
	FilesFolder string      `toml:"files_folder" yaml:"files_folder" json:"files_folder"`
	Files       WebDAVFiles `toml:"files" yaml:"files" json:"files"`
}

func (w WebDAVConfig) Folder() string {
	if w.FilesFolder == "" {
		return "@files"
	}
	return w.FilesFolder
}

// Uploads reports whether files with the given extension are uploaded.
// Every kind is uploaded unless switched off.
func (f WebDAVFiles) Uploads(ext string) bool {
	switch strings.ToLower(ext) {
	case ".html":
		return f.UploadHTML == nil || *f.UploadHTML
	case ".ics":
		return f.UploadICS == nil || *f.UploadICS
	case ".json":
		return f.UploadJSON == nil || *f.UploadJSON
	}
	return false
}

type DeploymentConfig struct {
	APIKeyEnv  string `toml:"api_key_env" yaml:"api_key_env" json:"api_key_env"`
	MaxRetries int    `toml:"max_retries" yaml:"max_retries" json:"max_retries"`
	RetryDelay int    `toml:"retry_delay" yaml:"retry_delay" json:"retry_delay"`
}

func (d DeploymentConfig) GetAPIKeyEnv() string {
	if d.APIKeyEnv == "" {
		return "LABKEY_API"
	}
	return d.APIKeyEnv
}

func (d DeploymentConfig) GetMaxRetries() int {
	if d.MaxRetries <= 0 {
		return 3
	}
	return d.MaxRetries
}

func (d DeploymentConfig) GetRetryDelay() time.Duration {
	if d.RetryDelay <= 0 {
		return 2 * time.Second
	}
	return time.Duration(d.RetryDelay) * time.Second
}

// Settings is settings.toml, optionally merged with labkey.toml.
type Settings struct {
	Database   DatabaseConfig   `toml:"database" yaml:"database" json:"database"`
	HTTP       HTTPConfig       `toml:"http" yaml:"http" json:"http"`
	Output     OutputConfig     `toml:"output" yaml:"output" json:"output"`
	TimeWindow TimeWindow       `toml:"time_window" yaml:"time_window" json:"time_window"`
	Calendar   CalendarConfig   `toml:"calendar" yaml:"calendar" json:"calendar"`
	Filtering  FilteringConfig  `toml:"filtering" yaml:"filtering" json:"filtering"`
	Collector  CollectorConfig  `toml:"collector" yaml:"collector" json:"collector"`
	Schedule   ScheduleConfig   `toml:"schedule" yaml:"schedule" json:"schedule"`
	LabKey     LabKeyConfig     `toml:"labkey" yaml:"labkey" json:"labkey"`
	WebDAV     WebDAVConfig     `toml:"webdav" yaml:"webdav" json:"webdav"`
	Deployment DeploymentConfig `toml:"deployment" yaml:"deployment" json:"deployment"`
}

func (s Settings) DatabasePath() string {
	if s.Database.Path == "" {
		return "data/seminars.db"
	}
	return s.Database.Path
}

func (o OutputConfig) Dir() string {
	return lo.CoalesceOrEmpty(o.OutputDir, "local-outputs")
}

func (o OutputConfig) ICS() string {
	return lo.CoalesceOrEmpty(o.ICSFilename, "gid_seminars.ics")
}

func (o OutputConfig) HTML() string {
	return lo.CoalesceOrEmpty(o.HTMLFilename, "index.html")
}

func (o OutputConfig) JSON() string {
	return lo.CoalesceOrEmpty(o.JSONFilename, "seminars.json")
}

type sourcesFile struct {
	Source map[string]SourceConfig `toml:"source" yaml:"source" json:"source"`
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ParseSettings reads one or more settings files; later files override
// earlier ones field by field.
func ParseSettings(files ...string) (Settings, error) {
	var settings Settings
	for _, f := range files {
		data, err := readFile(f)
		if err != nil {
			return settings, oops.In("config").With("path", f).Wrapf(err, "error reading settings")
		}
		if isYAML(f) {
			err = yaml.Unmarshal(data, &settings)
		} else {
			_, err = toml.Decode(string(data), &settings)
		}
		if err != nil {
			return settings, oops.In("config").With("path", f).Wrapf(err, "error parsing settings")
		}
	}
	return settings, nil
}

// ParseSources reads the `[source.<id>]` tables of a sources file. TOML
// files keep their declaration order, YAML files are sorted by id.
func ParseSources(path string) ([]SourceConfig, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, oops.In("config").With("path", path).Wrapf(err, "error reading sources")
	}

	var file sourcesFile
	var order []string
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "error parsing sources")
		}
		for id := range file.Source {
			order = append(order, id)
		}
		sort.Strings(order)
	} else {
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "error parsing sources")
		}
		for _, key := range md.Keys() {
			if len(key) == 2 && key[0] == "source" {
				order = append(order, key[1])
			}
		}
	}

	sources := make([]SourceConfig, 0, len(order))
	for _, id := range order {
		src := file.Source[id]
		src.ID = id
		sources = append(sources, src)
	}
	return sources, nil
}
