package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/db/models"
)

var (
	statsFormat string
	statsRuns   int
)

// Generate ...
var Generate = &cobra.Command{
	Use:   "generate",
	Short: "Render the ICS, JSON and HTML outputs from the stored events",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := mustPipeline()
		outputs, err := p.Generate(context.Background())
		if err != nil {
			ShutdownAndExit(1, fmt.Sprintf("failed to generate outputs: %v", err))
		}
		for name, output := range outputs {
			logger.Infof("Wrote %s (%d events) to %s", name, output.Events, output.Path)
		}
	},
}

// Upload ...
var Upload = &cobra.Command{
	Use:   "upload",
	Short: "Upload previously rendered outputs to the LabKey WebDAV folder",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := mustPipeline()
		results, err := p.Upload(context.Background())
		if err != nil {
			ShutdownAndExit(1, fmt.Sprintf("upload failed: %v", err))
		}
		for name, ok := range results {
			if !ok {
				logger.Errorf("Failed to upload %s", name)
			}
		}
	},
}

type statsReport struct {
	db.Statistics `yaml:",inline"`
	RecentRuns    []models.SourceRun `json:"recent_runs,omitempty" yaml:"recent_runs,omitempty"`
}

// Stats ...
var Stats = &cobra.Command{
	Use:   "stats",
	Short: "Print event counts per source and category plus the latest source runs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := mustPipeline()
		ctx := context.Background()

		stats, err := p.Store.Statistics(ctx)
		if err != nil {
			ShutdownAndExit(1, err.Error())
		}
		report := statsReport{Statistics: *stats}
		if statsRuns > 0 {
			if report.RecentRuns, err = p.Store.RecentRuns(ctx, statsRuns); err != nil {
				ShutdownAndExit(1, err.Error())
			}
		}

		var out []byte
		switch statsFormat {
		case "json":
			out, err = json.MarshalIndent(report, "", "  ")
		case "yaml":
			out, err = yaml.Marshal(report)
		default:
			err = fmt.Errorf("unsupported format %q, expected json or yaml", statsFormat)
		}
		if err != nil {
			ShutdownAndExit(1, err.Error())
		}
		fmt.Fprintln(os.Stdout, string(out))
	},
}

func init() {
	Stats.Flags().StringVarP(&statsFormat, "format", "o", "yaml", "Output format: json or yaml")
	Stats.Flags().IntVar(&statsRuns, "runs", 10, "Number of recent source runs to include")
}
