package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/flanksource/commons/logger"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/deploy"
	"github.com/flanksource/gid-seminars/filters"
	"github.com/flanksource/gid-seminars/generators"
	"github.com/flanksource/gid-seminars/scrapers"
)

// Pipeline wires configuration, the store and every stage of a run.
type Pipeline struct {
	Settings v1.Settings
	Sources  []v1.SourceConfig
	Store    *db.Store

	// BaseDir anchors relative paths in the settings.
	BaseDir    string
	SkipUpload bool
	Log        logger.Logger
}

// Result summarizes a full run.
type Result struct {
	Report  scrapers.Report              `json:"report"`
	Outputs map[string]generators.Result `json:"outputs,omitempty"`
	Uploads map[string]bool              `json:"uploads,omitempty"`
}

func (p *Pipeline) logger() logger.Logger {
	if p.Log == nil {
		return logger.StandardLogger()
	}
	return p.Log
}

// Resolve joins relative paths onto BaseDir.
func (p *Pipeline) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.BaseDir == "" {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

func (p *Pipeline) Collector() *scrapers.Collector {
	return &scrapers.Collector{
		Runner: &scrapers.Runner{
			Store:   p.Store,
			HTTP:    p.Settings.HTTP,
			BaseDir: p.BaseDir,
			Log:     p.Log,
		},
		Concurrency: p.Settings.Collector.Concurrency,
		Log:         p.Log,
	}
}

// Filters loads the exclusion file and the keyword configuration.
func (p *Pipeline) Filters() (filters.Chain, error) {
	exclusions, err := filters.LoadExclusions(p.Resolve(p.Settings.Filtering.Exclusions()), p.Log)
	if err != nil {
		return filters.Chain{}, err
	}
	if n := exclusions.Len(); n > 0 {
		p.logger().Infof("Loaded %d exclusion rule(s)", n)
	}
	return filters.Chain{
		Exclusions: exclusions,
		Keywords:   filters.NewKeywordFilter(p.Settings.Filtering),
	}, nil
}

func (p *Pipeline) OutputDir() string {
	return p.Resolve(p.Settings.Output.Dir())
}

func (p *Pipeline) Collect(ctx context.Context) scrapers.Report {
	return p.Collector().Collect(ctx, p.Sources)
}

func (p *Pipeline) Generate(ctx context.Context) (map[string]generators.Result, error) {
	chain, err := p.Filters()
	if err != nil {
		return nil, err
	}
	settings := p.Settings
	settings.Output.OutputDir = p.OutputDir()
	g := generators.New(p.Store, settings, chain)
	g.Log = p.Log
	return g.All(ctx)
}

func (p *Pipeline) Upload(ctx context.Context) (map[string]bool, error) {
	uploader, err := deploy.NewUploader(p.Settings, p.Log)
	if err != nil {
		return nil, err
	}
	results, err := uploader.UploadAll(ctx, p.OutputDir())
	if err != nil {
		return nil, err
	}

	succeeded, failed := deploy.Summary(results)
	log := p.logger()
	log.Infof("Upload summary: successful=%d failed=%d", succeeded, failed)
	if failed > 0 {
		log.Warnf("%d file(s) failed to upload", failed)
	}
	if succeeded > 0 {
		log.Infof("Dashboard URL: %s", uploader.DashboardURL())
	}
	return results, nil
}

// Run collects, renders and uploads. It stops after collection when no
// source succeeded. Individual files that fail to upload are only logged.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	log := p.logger()
	log.Infof("Step 1: collecting seminars")
	result := Result{Report: p.Collect(ctx)}
	if result.Report.Failed() {
		return result, fmt.Errorf("all sources failed")
	}

	log.Infof("Step 2: generating outputs")
	outputs, err := p.Generate(ctx)
	result.Outputs = outputs
	if err != nil {
		return result, err
	}

	if p.SkipUpload {
		log.Infof("Step 3: upload skipped")
	} else {
		log.Infof("Step 3: uploading to LabKey")
		uploads, err := p.Upload(ctx)
		result.Uploads = uploads
		if err != nil {
			return result, err
		}
	}

	if stats, err := p.Store.Statistics(ctx); err == nil {
		log.Infof("Database statistics: total=%d by_source=%v", stats.TotalSeminars, stats.BySource)
	}
	return result, nil
}
