package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/flanksource/gid-seminars/db"
	"github.com/flanksource/gid-seminars/pipeline"
	"github.com/flanksource/gid-seminars/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configDir  string
	baseDir    string
	otelConfig telemetry.Config
)

// Root ...
var Root = &cobra.Command{
	Use:   "gid-seminars",
	Short: "Aggregate infectious disease seminars into a calendar feed, JSON feed and web page",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.UseZap()

		stop := otelConfig.Start()
		AddShutdownHook(func() {
			if err := stop(context.Background()); err != nil {
				logger.Warnf("failed to flush traces: %v", err)
			}
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		Shutdown()
	},
}

// newPipeline loads the configuration directory and opens the database.
// The store is closed by the shutdown hooks.
func newPipeline() (*pipeline.Pipeline, error) {
	settings, sources, err := pipeline.Load(configDir)
	if err != nil {
		return nil, err
	}

	p := &pipeline.Pipeline{
		Settings: settings,
		Sources:  sources,
		BaseDir:  baseDir,
		Log:      logger.GetLogger("pipeline"),
	}

	path := db.Path
	if path == "" {
		path = p.Resolve(settings.DatabasePath())
	}
	logger.Debugf("Using database %s", path)

	store, err := db.Init(path)
	if err != nil {
		return nil, err
	}
	p.Store = store
	AddShutdownHook(func() {
		if err := store.Close(); err != nil {
			logger.Warnf("failed to close database: %v", err)
		}
	})
	return p, nil
}

func mustPipeline() *pipeline.Pipeline {
	p, err := newPipeline()
	if err != nil {
		ShutdownAndExit(1, fmt.Sprintf("failed to initialize: %v", err))
	}
	return p
}

func init() {
	logger.BindFlags(Root.PersistentFlags())
	db.Flags(Root.PersistentFlags())
	otelConfig.BindFlags(Root.PersistentFlags())

	Root.PersistentFlags().StringVar(&configDir, "config-dir", "config", "Directory containing settings.toml, sources.toml and labkey.toml")
	Root.PersistentFlags().StringVar(&baseDir, "base-dir", os.Getenv("GID_BASE_DIR"), "Directory that relative paths in the settings are resolved against")

	if len(commit) > 8 {
		version = fmt.Sprintf("%v, commit %v, built at %v", version, commit[0:8], date)
	}
	Root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of gid-seminars",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	Root.AddCommand(Run, Collect, Generate, Upload, Stats, Serve)
}
