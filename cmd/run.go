package cmd

import (
	"context"
	"fmt"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
	"github.com/flanksource/gid-seminars/scrapers"
)

var skipUpload bool

// Run ...
var Run = &cobra.Command{
	Use:   "run",
	Short: "Collect all sources, render the outputs and upload them to LabKey",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := mustPipeline()
		p.SkipUpload = skipUpload

		result, err := p.Run(context.Background())
		logReport(result.Report)
		for name, output := range result.Outputs {
			logger.Infof("Wrote %s (%d events) to %s", name, output.Events, output.Path)
		}
		if err != nil {
			ShutdownAndExit(1, fmt.Sprintf("pipeline failed: %v", err))
		}
	},
}

// Collect ...
var Collect = &cobra.Command{
	Use:   "collect [source-id...]",
	Short: "Run the configured sources and store their events",
	Run: func(cmd *cobra.Command, ids []string) {
		p := mustPipeline()
		if len(ids) > 0 {
			sources, err := selectSources(p.Sources, ids)
			if err != nil {
				ShutdownAndExit(1, err.Error())
			}
			p.Sources = sources
		}

		report := p.Collect(context.Background())
		logReport(report)
		if report.Failed() {
			ShutdownAndExit(1, "all sources failed")
		}
	},
}

// selectSources keeps the requested ids in configuration order.
func selectSources(sources []v1.SourceConfig, ids []string) ([]v1.SourceConfig, error) {
	selected := lo.Filter(sources, func(s v1.SourceConfig, _ int) bool { return lo.Contains(ids, s.ID) })
	if missing, _ := lo.Difference(ids, lo.Map(selected, func(s v1.SourceConfig, _ int) string { return s.ID })); len(missing) > 0 {
		return nil, fmt.Errorf("unknown source(s): %v", missing)
	}
	return selected, nil
}

// logReport prints one line per source; the collector already logs the totals.
func logReport(report scrapers.Report) {
	for _, id := range report.Order {
		outcome := report.Outcomes[id]
		switch outcome.Status {
		case models.StatusError:
			logger.Errorf("[%s] failed: %s", id, outcome.Error)
		case models.StatusSkipped:
			logger.Infof("[%s] skipped", id)
		default:
			logger.Infof("[%s] found=%d added=%d updated=%d removed=%d",
				id, outcome.Stats.Found, outcome.Stats.Added, outcome.Stats.Updated, outcome.Stats.Removed)
		}
	}
}

func init() {
	Run.Flags().BoolVar(&skipUpload, "skip-upload", false, "Render outputs without uploading them to LabKey")
}
