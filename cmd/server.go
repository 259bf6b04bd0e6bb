package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flanksource/commons/duration"
	"github.com/flanksource/commons/logger"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/flanksource/gid-seminars/jobs"
	"github.com/flanksource/gid-seminars/pipeline"
	"github.com/flanksource/gid-seminars/query"
	"github.com/flanksource/gid-seminars/scrapers"
)

var (
	httpPort           int
	runOnStart         bool
	schedule           string
	httpCacheRetention string
)

// registered once with the default prometheus registry
var metricsMiddleware = echoprometheus.NewMiddleware("gid_seminars")

// Serve ...
var Serve = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on a cron schedule and serve the stored events over HTTP",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := mustPipeline()
		p.SkipUpload = skipUpload
		if schedule != "" {
			p.Settings.Schedule.Cron = schedule
		}
		if err := serve(p); err != nil {
			ShutdownAndExit(1, err.Error())
		}
	},
}

func newServer(p *pipeline.Pipeline, run *jobs.Job) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	if logger.IsTraceEnabled() {
		e.Use(middleware.Logger())
	}
	e.Use(otelecho.Middleware(otelConfig.ServiceName))
	e.Use(metricsMiddleware)

	e.GET("/live", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := run.LastError(); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/events", query.Handler(p.Store, p.Settings.TimeWindow))
	e.GET("/events/:id", query.EventHandler(p.Store))
	e.GET("/stats", query.StatsHandler(p.Store))
	e.POST("/run/:id", scrapers.RunNowHandler(p.Collector(), p.Sources))
	e.POST("/run", func(c echo.Context) error {
		go run.Run(context.WithoutCancel(c.Request().Context()))
		return c.JSON(http.StatusAccepted, map[string]string{"job": run.Name})
	})
	return e
}

func serve(p *pipeline.Pipeline) error {
	retention, err := duration.ParseDuration(httpCacheRetention)
	if err != nil {
		return fmt.Errorf("invalid --http-cache-retention %q: %w", httpCacheRetention, err)
	}
	jobs.HTTPCacheRetention = time.Duration(retention)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := p.Job()
	run.RunNow = runOnStart
	if err := jobs.ScheduleJobs(ctx, append([]*jobs.Job{run}, jobs.CleanupJobs(p.Store)...)...); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	AddShutdownHook(jobs.Stop)

	e := newServer(p, run)
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", httpPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server stopped: %v", err)
		}
	}()

	sig := waitForSignal()
	logger.Infof("Received %s, shutting down", sig)
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return e.Shutdown(shutdownCtx)
}

// ServerFlags ...
func ServerFlags(flags *pflag.FlagSet) {
	flags.IntVar(&httpPort, "httpPort", 8080, "Port to expose the health, metrics and run endpoints on")
	flags.BoolVar(&runOnStart, "run-on-start", false, "Run the pipeline immediately instead of waiting for the first tick")
	flags.BoolVar(&skipUpload, "skip-upload", false, "Render outputs without uploading them to LabKey")
	flags.StringVar(&schedule, "schedule", "", "Cron schedule for the pipeline (defaults to schedule.cron in settings)")
	flags.IntVar(&jobs.SourceRunRetentionDays, "source-run-retention-days", jobs.DefaultSourceRunRetentionDays, "Days to retain source run history for")
	flags.StringVar(&httpCacheRetention, "http-cache-retention", "7d", "How long unused HTTP cache validators are kept")
}

func init() {
	ServerFlags(Serve.Flags())
}
